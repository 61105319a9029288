package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/trajectory"
)

func TestStateFromQuery(t *testing.T) {
	q := url.Values{
		"vi":        {"10"},
		"VF":        {"30"},
		"time":      {"4"},
		"a":         {""},
		"precision": {"3"},
	}
	s, err := StateFromQuery(q, "precision")
	if err != nil {
		t.Fatalf("StateFromQuery: %v", err)
	}
	if s.Known() != kinematics.SetOf(kinematics.Vi, kinematics.Vf, kinematics.T) {
		t.Errorf("known = %s", s.Known())
	}
}

func TestStateFromQueryErrors(t *testing.T) {
	tests := []struct {
		name string
		q    url.Values
		want error
	}{
		{"unknown name", url.Values{"speed": {"1"}}, kinematics.ErrUnknownQuantity},
		{"not a number", url.Values{"vi": {"fast"}}, kinematics.ErrInvalidValue},
		{"repeated", url.Values{"vi": {"1", "2"}}, kinematics.ErrInvalidValue},
		{"alias twice", url.Values{"vi": {"1"}, "v0": {"2"}}, kinematics.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StateFromQuery(tt.q)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIntParam(t *testing.T) {
	q := url.Values{"n": {"7"}, "bad": {"x"}}

	if p, err := IntParam(q, "missing"); p != nil || err != nil {
		t.Errorf("missing = %v, %v", p, err)
	}
	if p, err := IntParam(q, "n"); err != nil || *p != 7 {
		t.Errorf("n = %v, %v", p, err)
	}
	if _, err := IntParam(q, "bad"); !errors.Is(err, ErrBadParameter) {
		t.Errorf("bad err = %v", err)
	}
}

func TestFloatParam(t *testing.T) {
	q := url.Values{"step": {"0.25"}}
	if f, err := FloatParam(q, "step", 1); err != nil || f != 0.25 {
		t.Errorf("step = %v, %v", f, err)
	}
	if f, _ := FloatParam(q, "rate", 1); f != 1 {
		t.Errorf("default = %v, want 1", f)
	}
}

func TestWriteInputError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantKind   string
	}{
		{kinematics.ErrInsufficientParameters, http.StatusBadRequest, "insufficient_parameters"},
		{fmt.Errorf("wrapped: %w", kinematics.ErrDegenerateMotion), http.StatusBadRequest, "degenerate_motion"},
		{trajectory.ErrTooManySamples, http.StatusBadRequest, "too_many_samples"},
		{ErrBadParameter, http.StatusBadRequest, "bad_parameter"},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteInputError(w, tt.err, 500)
		if w.Code != tt.wantStatus {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.wantStatus)
		}
		var body ErrorBody
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Kind != tt.wantKind {
			t.Errorf("%v: kind = %q, want %q", tt.err, body.Kind, tt.wantKind)
		}
		if tt.wantKind == "too_many_samples" && body.MaxSamples != 500 {
			t.Errorf("max_samples = %d, want 500", body.MaxSamples)
		}
	}
}
