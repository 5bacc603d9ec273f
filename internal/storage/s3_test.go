package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

func TestForwardListingCopiesStream(t *testing.T) {
	src := make(chan minio.ObjectInfo, 3)
	for _, key := range []string{"a", "b", "c"} {
		src <- minio.ObjectInfo{Key: key}
	}
	close(src)

	dst := make(chan minio.ObjectInfo)
	done := make(chan error, 1)
	go func() {
		done <- forwardListing(context.Background(), src, dst)
	}()

	var keys []string
	for obj := range dst {
		keys = append(keys, obj.Key)
	}
	if err := <-done; err != nil {
		t.Fatalf("forwardListing failed: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestForwardListingPropagatesListError(t *testing.T) {
	boom := errors.New("listing broke")
	src := make(chan minio.ObjectInfo, 1)
	src <- minio.ObjectInfo{Err: boom}
	close(src)

	dst := make(chan minio.ObjectInfo, 1)
	if err := forwardListing(context.Background(), src, dst); !errors.Is(err, boom) {
		t.Fatalf("expected listing error, got %v", err)
	}
	if _, open := <-dst; open {
		t.Fatal("dst should be closed after an error")
	}
}

func TestForwardListingStopsWhenConsumerQuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := make(chan minio.ObjectInfo)
	dst := make(chan minio.ObjectInfo)

	done := make(chan error, 1)
	go func() {
		done <- forwardListing(ctx, src, dst)
	}()

	// Hand over one object, then stop consuming and cancel while the pump is
	// blocked on its next send.
	go func() {
		src <- minio.ObjectInfo{Key: "first"}
		src <- minio.ObjectInfo{Key: "stuck"}
	}()
	<-dst
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not exit after cancel")
	}
	if _, open := <-dst; open {
		t.Fatal("dst should be closed after cancel")
	}
}
