package frontpanel

import (
	"strings"
	"testing"
)

func testEndpoints() I2CEndpoints {
	return I2CEndpoints{
		MemStart: Endpoint{Address: 0x40, Bit: 0},
		MemWrite: Endpoint{Address: 0x40, Bit: 1},
		MemRead:  Endpoint{Address: 0x40, Bit: 2},
		In:       Endpoint{Address: 0x01, Bit: 0},
		Out:      Endpoint{Address: 0x21, Bit: 0},
		Start:    Endpoint{Address: 0x40, Bit: 3},
		Done:     Endpoint{Address: 0x60, Bit: 0},
		Reset:    Endpoint{Address: 0x40, Bit: 4},
	}
}

func TestValidateComplete(t *testing.T) {
	eps := testEndpoints()
	if err := eps.Validate(); err != nil {
		t.Errorf("Complete endpoint map failed validation: %v", err)
	}
}

func TestValidateMissing(t *testing.T) {
	eps := testEndpoints()
	eps.Done = Endpoint{}

	err := eps.Validate()
	if err == nil {
		t.Fatal("Expected validation failure for missing DONE endpoint")
	}
	if !strings.Contains(err.Error(), "DONE") {
		t.Errorf("Error should name the missing endpoint, got: %v", err)
	}
}

func TestValidateOptionalPipe(t *testing.T) {
	// Pipe endpoints are optional; a nil PipeOut must not fail validation.
	eps := testEndpoints()
	if eps.PipeOut != nil || eps.FifoReset != nil {
		t.Fatal("Test fixture should not populate pipe endpoints")
	}
	if err := eps.Validate(); err != nil {
		t.Errorf("Nil pipe endpoints should be valid: %v", err)
	}
}

func TestEndpointMask(t *testing.T) {
	ep := Endpoint{Address: 0x60, Bit: 3}
	if ep.Mask() != 0x08 {
		t.Errorf("Expected mask 0x08 for bit 3, got 0x%02X", ep.Mask())
	}
}
