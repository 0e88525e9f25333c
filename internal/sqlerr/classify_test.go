package sqlerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vendorError mimics a driver error carrying SQLSTATE and a vendor code.
type vendorError struct {
	state string
	code  int
}

func (e *vendorError) Error() string { return fmt.Sprintf("vendor error %s/%d", e.state, e.code) }

func extractVendor(err error) (State, bool) {
	var ve *vendorError
	if errors.As(err, &ve) {
		return State{SQLState: ve.state, VendorCode: ve.code}, true
	}
	return State{}, false
}

// pgError exposes SQLState() the way pq and pgx errors do.
type pgError struct{ code string }

func (e *pgError) Error() string    { return "pg: " + e.code }
func (e *pgError) SQLState() string { return e.code }

func TestDefaultClassifier_Deadlocks(t *testing.T) {
	c := NewDefaultClassifier(extractVendor)

	tests := []struct {
		name  string
		state string
		code  int
	}{
		{"serialization failure", "40001", 1213},
		{"postgres deadlock", "40P01", 0},
		{"oracle ORA-00060", "61000", 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &vendorError{state: tt.state, code: tt.code}
			err := c.Classify(raw)

			assert.True(t, IsDeadlock(err))
			assert.ErrorIs(t, err, ErrDeadlock)
			assert.ErrorIs(t, err, raw, "original must be the cause")
		})
	}
}

func TestDefaultClassifier_Oracle61000WithoutCodeIsGeneric(t *testing.T) {
	c := NewDefaultClassifier(extractVendor)

	err := c.Classify(&vendorError{state: "61000", code: 4020})
	assert.Equal(t, KindPersistence, KindOf(err))
}

func TestDefaultClassifier_ConstraintPrefix(t *testing.T) {
	c := NewDefaultClassifier(extractVendor)

	for _, state := range []string{"23000", "23505", "23503", "23502"} {
		err := c.Classify(&vendorError{state: state})
		assert.True(t, IsConstraintViolation(err), "state %s", state)

		var pe *Error
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, state, pe.SQLState)
	}
}

func TestDefaultClassifier_Generic(t *testing.T) {
	c := NewDefaultClassifier(extractVendor)

	raw := errors.New("connection reset")
	err := c.Classify(raw)
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.ErrorIs(t, err, raw)

	err = c.Classify(&vendorError{state: "42000"})
	assert.Equal(t, KindPersistence, KindOf(err))
}

func TestDefaultClassifier_SQLStateInterface(t *testing.T) {
	c := NewDefaultClassifier()

	err := c.Classify(fmt.Errorf("exec: %w", &pgError{code: "40P01"}))
	assert.True(t, IsDeadlock(err))
}

func TestDefaultClassifier_PassThrough(t *testing.T) {
	c := NewDefaultClassifier()

	assert.NoError(t, c.Classify(nil))

	orig := New(KindTooManyRows, "2 rows")
	wrapped := fmt.Errorf("select: %w", orig)
	assert.Same(t, wrapped, c.Classify(wrapped))
}

type fixedClassifier struct{ kind Kind }

func (f fixedClassifier) Classify(err error) error {
	return &Error{Kind: f.kind, Err: err}
}

func TestSetClassifier_SwapsProcessWideInstance(t *testing.T) {
	prev := CurrentClassifier()
	t.Cleanup(func() { SetClassifier(prev) })

	SetClassifier(fixedClassifier{kind: KindDeadlock})
	assert.True(t, IsDeadlock(Classify(errors.New("anything"))))

	SetClassifier(prev)
	assert.Equal(t, KindPersistence, KindOf(Classify(errors.New("anything"))))
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindConstraintViolation, SQLState: "23505", Err: errors.New("duplicate key")}
	assert.Equal(t, "CONSTRAINT_VIOLATION: duplicate key (sqlstate=23505)", err.Error())

	assert.Equal(t, "CONTRACT: already rolled back", New(KindContract, "already rolled back").Error())
}
