package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"firestige.xyz/wiresentry/internal/core"
)

type mockDetector struct{ id string }

func (m *mockDetector) ID() string         { return m.id }
func (m *mockDetector) Metadata() Metadata { return Metadata{Name: m.id, Author: "test", Version: "1"} }
func (m *mockDetector) Frequency() int     { return 1 }
func (m *mockDetector) Scan(time.Time, []*core.Packet) []*core.Attack {
	return nil
}

type mockHandler struct{ id string }

func (m *mockHandler) ID() string                                  { return m.id }
func (m *mockHandler) Metadata() Metadata                          { return Metadata{Name: m.id} }
func (m *mockHandler) Handle(context.Context, *core.Attack) error { return nil }

func TestRegisterAndGetDetector(t *testing.T) {
	detectorReg.Reset()

	RegisterDetector("test_det", func() Detector { return &mockDetector{id: "test_det"} })

	factory, err := GetDetectorFactory("test_det")
	if err != nil {
		t.Fatalf("GetDetectorFactory failed: %v", err)
	}
	if instance := factory(); instance.ID() != "test_det" {
		t.Errorf("Expected id 'test_det', got %s", instance.ID())
	}
}

func TestRegisterAndGetHandler(t *testing.T) {
	handlerReg.Reset()

	RegisterHandler("test_handler", func() Handler { return &mockHandler{id: "h"} })

	factory, err := GetHandlerFactory("test_handler")
	if err != nil {
		t.Fatalf("GetHandlerFactory failed: %v", err)
	}
	if instance := factory(); instance.ID() != "h" {
		t.Errorf("Expected id 'h', got %s", instance.ID())
	}
}

func TestGetNotFoundReturnsError(t *testing.T) {
	detectorReg.Reset()
	handlerReg.Reset()

	_, err := GetDetectorFactory("nonexistent")
	if !errors.Is(err, core.ErrPluginNotFound) {
		t.Errorf("Expected ErrPluginNotFound, got %v", err)
	}

	_, err = GetHandlerFactory("nonexistent")
	if !errors.Is(err, core.ErrPluginNotFound) {
		t.Errorf("Expected ErrPluginNotFound, got %v", err)
	}
}

func TestDuplicateRegisterPanics(t *testing.T) {
	detectorReg.Reset()

	RegisterDetector("dup", func() Detector { return &mockDetector{id: "dup"} })

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for duplicate registration")
		}
	}()
	RegisterDetector("dup", func() Detector { return &mockDetector{id: "dup"} })
}

func TestEmptyNamePanics(t *testing.T) {
	detectorReg.Reset()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for empty name")
		}
	}()
	RegisterDetector("", func() Detector { return &mockDetector{} })
}

func TestNilFactoryPanics(t *testing.T) {
	handlerReg.Reset()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for nil factory")
		}
	}()
	RegisterHandler("test", nil)
}

func TestListSorted(t *testing.T) {
	detectorReg.Reset()
	handlerReg.Reset()

	RegisterDetector("det_c", func() Detector { return &mockDetector{} })
	RegisterDetector("det_a", func() Detector { return &mockDetector{} })
	RegisterDetector("det_b", func() Detector { return &mockDetector{} })

	list := ListDetectors()
	if len(list) != 3 || list[0] != "det_a" || list[1] != "det_b" || list[2] != "det_c" {
		t.Errorf("Expected sorted [det_a det_b det_c], got %v", list)
	}
	if len(ListHandlers()) != 0 {
		t.Errorf("Expected no handlers, got %v", ListHandlers())
	}
}

func TestTypeSeparation(t *testing.T) {
	detectorReg.Reset()
	handlerReg.Reset()

	name := "common_name"
	RegisterDetector(name, func() Detector { return &mockDetector{id: "d"} })
	RegisterHandler(name, func() Handler { return &mockHandler{id: "h"} })

	if _, err := GetDetectorFactory(name); err != nil {
		t.Errorf("detector lookup failed: %v", err)
	}
	if _, err := GetHandlerFactory(name); err != nil {
		t.Errorf("handler lookup failed: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	info := Describe(&mockDetector{id: "abc"})
	if info.ID != "abc" || info.Name != "abc" || info.Author != "test" || info.Version != "1" {
		t.Errorf("unexpected info: %+v", info)
	}
}
