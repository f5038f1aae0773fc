package msgfolder_test

import (
	stderrors "errors"
	"slices"
	"testing"

	"github.com/infodancer/msgfolder"
	"github.com/infodancer/msgfolder/errors"

	// Import the backends to trigger registration
	_ "github.com/infodancer/msgfolder/maildir"
	_ "github.com/infodancer/msgfolder/mbox"
	_ "github.com/infodancer/msgfolder/mh"
)

func TestRegisteredTypes(t *testing.T) {
	types := msgfolder.RegisteredTypes()
	if len(types) == 0 {
		t.Fatal("expected at least one registered type")
	}

	// every backend should be registered via init()
	for _, want := range []string{"maildir", "mbox", "mh"} {
		if !slices.Contains(types, want) {
			t.Errorf("%s not found in registered types: %v", want, types)
		}
	}
	if !slices.IsSorted(types) {
		t.Errorf("registered types not sorted: %v", types)
	}
}

func TestOpenUnregistered(t *testing.T) {
	_, err := msgfolder.Open(msgfolder.Config{
		Type: "nonexistent",
		Path: "/tmp",
	})
	if err != errors.ErrStoreNotRegistered {
		t.Fatalf("expected ErrStoreNotRegistered, got %v", err)
	}
}

func TestOpenInvalidConfig(t *testing.T) {
	_, err := msgfolder.Open(msgfolder.Config{
		Type: "mbox",
		Path: "", // invalid - empty path
	})
	if err != errors.ErrStoreConfigInvalid {
		t.Fatalf("expected ErrStoreConfigInvalid, got %v", err)
	}
}

func TestOpenInvalidLockKind(t *testing.T) {
	_, err := msgfolder.Open(msgfolder.Config{
		Type:   "mh",
		Path:   t.TempDir(),
		Lock:   msgfolder.LockConfig{Kind: "semaphore"},
		Create: true,
	})
	if !stderrors.Is(err, errors.ErrStoreConfigInvalid) {
		t.Fatalf("expected ErrStoreConfigInvalid, got %v", err)
	}
}

func TestRegisterPanics(t *testing.T) {
	factory := func(msgfolder.Config) (msgfolder.Backend, error) { return nil, nil }
	tests := []struct {
		name    string
		typ     string
		factory msgfolder.BackendFactory
	}{
		{"empty name", "", factory},
		{"nil factory", "x-nil", nil},
		{"duplicate", "mbox", factory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			msgfolder.Register(tt.typ, tt.factory)
		})
	}
}
