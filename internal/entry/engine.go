package entry

import (
	"fmt"
	"math"
	"time"

	"github.com/mrcode/health-manager/internal/catalog"
	"github.com/mrcode/health-manager/internal/models"
)

// DefaultHeight is the height in inches used when none is configured
const DefaultHeight = 66.0

// Entry is one submission from the entry form or the CLI
type Entry struct {
	Time       time.Time `json:"time"`
	RecordType string    `json:"recordType"`
	Values     string    `json:"values"`
	Note       string    `json:"note"`
}

// Engine expands decoded fields into measurement rows.
// It holds no state besides the user's height and is safe to copy.
type Engine struct {
	Height float64 // inches
}

// NewEngine creates an engine for the given height in inches
func NewEngine(height float64) Engine {
	return Engine{Height: height}
}

func (e Engine) height() float64 {
	if e.Height <= 0 {
		return DefaultHeight
	}
	return e.Height
}

// BMI computes the body mass index from pounds and inches
func BMI(weightLbs, heightIn float64) float64 {
	return weightLbs * 703 / (heightIn * heightIn)
}

// Process looks up the entry's record type, decodes its values and derives
// the rows to store. Either every row is returned or none is.
func (e Engine) Process(en Entry) ([]models.Measurement, error) {
	rt, ok := catalog.Lookup(en.RecordType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecordType, en.RecordType)
	}

	fields, err := Decode(rt, en.Values)
	if err != nil {
		return nil, err
	}

	return e.Derive(rt, fields, en.Time, en.Note)
}

// Derive computes the rows for a record type from its decoded fields.
// Device formats emit their declared outputs in order. Generic types emit
// each field verbatim followed by whichever conditional derivations apply.
func (e Engine) Derive(rt catalog.RecordType, fields Fields, ts time.Time, note string) ([]models.Measurement, error) {
	outputs := rt.Outputs
	if rt.Generic() {
		outputs = make([]catalog.Output, 0, len(rt.Fields)+len(catalog.GenericDerivations))
		for _, f := range rt.Fields {
			outputs = append(outputs, catalog.Output{Name: catalog.Canonical(f), Op: catalog.OpField, Args: []string{f}})
		}
		for _, cond := range catalog.GenericDerivations {
			if fields.Has(cond.Requires...) {
				outputs = append(outputs, cond.Outputs...)
			}
		}
	}

	rows := make([]models.Measurement, 0, len(outputs))
	for _, out := range outputs {
		v, err := e.eval(rt.Name, out, fields)
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.Measurement{
			Time:  ts,
			Name:  out.Name,
			Value: v,
			Unit:  catalog.Unit(out.Name),
			Note:  note,
		})
	}
	return rows, nil
}

func (e Engine) eval(recordType string, out catalog.Output, fields Fields) (float64, error) {
	args := make([]float64, len(out.Args))
	for i, name := range out.Args {
		v, ok := fields.Get(name)
		if !ok {
			return 0, &MissingFieldError{RecordType: recordType, Measurement: out.Name, Field: name}
		}
		args[i] = v
	}

	var (
		v       float64
		divisor = 1.0
	)
	switch out.Op {
	case catalog.OpField:
		v = args[0]
	case catalog.OpPercentOf:
		v = args[0] * args[1] / 100
	case catalog.OpShareOf:
		divisor = args[0]
		v = 100 * args[1] / args[0]
	case catalog.OpDifference:
		v = args[0] - args[1]
	case catalog.OpPercentOfDifference:
		v = args[0] * (args[1] - args[2]) / 100
	case catalog.OpRatio:
		divisor = args[1]
		v = args[0] / args[1]
	case catalog.OpBMI:
		v = BMI(args[0], e.height())
	default:
		return 0, fmt.Errorf("%s: unsupported operation %d", out.Name, out.Op)
	}

	if divisor == 0 {
		return 0, &ParseError{RecordType: recordType, Field: out.Name, Err: ErrZeroDivisor}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{RecordType: recordType, Field: out.Name, Err: ErrNotFinite}
	}
	return v, nil
}
