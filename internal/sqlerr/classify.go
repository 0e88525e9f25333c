package sqlerr

import (
	"errors"
	"strings"
	"sync/atomic"
)

// State is the vendor information carried by a raw engine error.
type State struct {
	SQLState   string
	VendorCode int
}

// StateExtractor pulls State out of a driver specific error.
// Dialect adapters supply these because database/sql has no common error type.
type StateExtractor func(err error) (State, bool)

// Classifier maps raw engine errors to categorized errors.
type Classifier interface {
	Classify(err error) error
}

// oracleDeadlockCode is ORA-00060, reported with SQLSTATE 61000.
const oracleDeadlockCode = 60

// DefaultClassifier applies the standard SQLSTATE rules. First match wins:
//   - state class "23" → KindConstraintViolation
//   - "40001", "40P01", or "61000" with vendor code 60 → KindDeadlock
//   - anything else → KindPersistence
type DefaultClassifier struct {
	Extractors []StateExtractor
}

// NewDefaultClassifier creates a classifier that consults the given extractors
// in order.
func NewDefaultClassifier(extractors ...StateExtractor) *DefaultClassifier {
	return &DefaultClassifier{Extractors: extractors}
}

// Classify implements Classifier. nil stays nil and already categorized errors
// are returned unchanged.
func (c *DefaultClassifier) Classify(err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	st, ok := c.state(err)
	if !ok {
		return &Error{Kind: KindPersistence, Err: err}
	}
	return &Error{
		Kind:       kindForState(st),
		SQLState:   st.SQLState,
		VendorCode: st.VendorCode,
		Err:        err,
	}
}

func (c *DefaultClassifier) state(err error) (State, bool) {
	for _, extract := range c.Extractors {
		if st, ok := extract(err); ok {
			return st, true
		}
	}
	// pq and pgx style errors
	var stater interface{ SQLState() string }
	if errors.As(err, &stater) {
		return State{SQLState: stater.SQLState()}, true
	}
	return State{}, false
}

func kindForState(st State) Kind {
	switch {
	case strings.HasPrefix(st.SQLState, "23"):
		return KindConstraintViolation
	case st.SQLState == "40001", st.SQLState == "40P01":
		return KindDeadlock
	case st.SQLState == "61000" && st.VendorCode == oracleDeadlockCode:
		return KindDeadlock
	default:
		return KindPersistence
	}
}

var current atomic.Pointer[Classifier]

func init() {
	var c Classifier = NewDefaultClassifier()
	current.Store(&c)
}

// SetClassifier replaces the process-wide classifier.
func SetClassifier(c Classifier) {
	current.Store(&c)
}

// CurrentClassifier returns the process-wide classifier.
func CurrentClassifier() Classifier {
	return *current.Load()
}

// Classify categorizes err with the process-wide classifier.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	return CurrentClassifier().Classify(err)
}
