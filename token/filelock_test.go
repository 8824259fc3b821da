package token

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	lockPath := tokenFile + ".lock"

	lock, err := acquireFileLock(tokenFile)
	if err != nil {
		t.Fatalf("acquireFileLock() error = %v", err)
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Errorf("lock file missing while held: %v", err)
	}

	if err := lock.release(); err != nil {
		t.Errorf("release() error = %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("lock file still present after release")
	}

	// The handle is gone, so a second release only reports the missing file.
	if err := lock.release(); err == nil {
		t.Errorf("second release() returned nil, want not-exist error")
	}
}

func TestFileLock_SerializesHolders(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")

	const workers = 8
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			lock, err := acquireFileLock(tokenFile)
			if err != nil {
				t.Errorf("acquireFileLock() error = %v", err)
				return
			}
			if n := inside.Add(1); n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			if err := lock.release(); err != nil {
				t.Errorf("release() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen.Load())
	}
}

func TestFileLock_BreaksStaleLock(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	lockPath := tokenFile + ".lock"

	if err := os.WriteFile(lockPath, []byte("12345"), 0o600); err != nil {
		t.Fatalf("failed to create leftover lock: %v", err)
	}
	old := time.Now().Add(-2 * lockStaleAfter)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatalf("failed to age lock: %v", err)
	}

	lock, err := acquireFileLock(tokenFile)
	if err != nil {
		t.Fatalf("acquireFileLock() over stale lock error = %v", err)
	}
	defer lock.release()
}

func TestFileLock_WaitsForHolder(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")

	first, err := acquireFileLock(tokenFile)
	if err != nil {
		t.Fatalf("acquireFileLock() error = %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		second, err := acquireFileLock(tokenFile)
		if err == nil {
			err = second.release()
		}
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("second holder got the lock while the first still held it")
	case <-time.After(3 * lockRetryDelay):
	}

	first.release()

	select {
	case err := <-acquired:
		if err != nil {
			t.Errorf("second holder failed after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("second holder never acquired the lock")
	}
}

func TestStore_SaveReleasesLock(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	store := NewStore(tokenFile, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Save(&AccessToken{AccessToken: "token", ExpiresIn: 60}, time.Now()); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := os.Stat(tokenFile + ".lock"); !os.IsNotExist(err) {
		t.Errorf("lock file left behind after Save")
	}
	if _, err := os.Stat(tokenFile + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind after Save")
	}
}
