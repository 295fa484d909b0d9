package visualiser

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/scansim/internal/lidar/laserscan"
)

// Struct field names. 64-bit integers travel as decimal strings so they
// survive the float64 number type.
const (
	fieldSeq            = "seq"
	fieldStampNanos     = "stamp_ns"
	fieldFrameID        = "frame_id"
	fieldAngleMin       = "angle_min"
	fieldAngleMax       = "angle_max"
	fieldAngleIncrement = "angle_increment"
	fieldTimeIncrement  = "time_increment"
	fieldScanTime       = "scan_time"
	fieldRangeMin       = "range_min"
	fieldRangeMax       = "range_max"
	fieldRanges         = "ranges"
	fieldIntensities    = "intensities"
	fieldFailed         = "failed"
	fieldStale          = "stale"
)

// MessageToStruct encodes a scan message. No-return ranges become null.
func MessageToStruct(m laserscan.Message) *structpb.Struct {
	ranges := make([]*structpb.Value, len(m.Ranges))
	for i, r := range m.Ranges {
		if math.IsInf(float64(r), 0) || math.IsNaN(float64(r)) {
			ranges[i] = structpb.NewNullValue()
		} else {
			ranges[i] = structpb.NewNumberValue(float64(r))
		}
	}
	intensities := make([]*structpb.Value, len(m.Intensities))
	for i, v := range m.Intensities {
		intensities[i] = structpb.NewNumberValue(float64(v))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSeq:            structpb.NewStringValue(strconv.FormatUint(m.Seq, 10)),
		fieldStampNanos:     structpb.NewStringValue(strconv.FormatInt(int64(m.Stamp), 10)),
		fieldFrameID:        structpb.NewStringValue(m.FrameID),
		fieldAngleMin:       structpb.NewNumberValue(m.AngleMin),
		fieldAngleMax:       structpb.NewNumberValue(m.AngleMax),
		fieldAngleIncrement: structpb.NewNumberValue(m.AngleIncrement),
		fieldTimeIncrement:  structpb.NewNumberValue(m.TimeIncrement),
		fieldScanTime:       structpb.NewNumberValue(m.ScanTime),
		fieldRangeMin:       structpb.NewNumberValue(m.RangeMin),
		fieldRangeMax:       structpb.NewNumberValue(m.RangeMax),
		fieldRanges:         structpb.NewListValue(&structpb.ListValue{Values: ranges}),
		fieldIntensities:    structpb.NewListValue(&structpb.ListValue{Values: intensities}),
		fieldFailed:         structpb.NewBoolValue(m.Failed),
		fieldStale:          structpb.NewBoolValue(m.Stale),
	}}
}

// structReader pulls typed fields out of a struct, keeping the first error.
type structReader struct {
	fields map[string]*structpb.Value
	err    error
}

func (r *structReader) value(name string) *structpb.Value {
	v, ok := r.fields[name]
	if !ok && r.err == nil {
		r.err = fmt.Errorf("missing field %q", name)
	}
	return v
}

func (r *structReader) number(name string) float64 {
	v := r.value(name)
	if v == nil {
		return 0
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		if r.err == nil {
			r.err = fmt.Errorf("field %q: expected number", name)
		}
		return 0
	}
	return n.NumberValue
}

func (r *structReader) str(name string) string {
	v := r.value(name)
	if v == nil {
		return ""
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		if r.err == nil {
			r.err = fmt.Errorf("field %q: expected string", name)
		}
		return ""
	}
	return s.StringValue
}

func (r *structReader) boolean(name string) bool {
	v, ok := r.fields[name]
	if !ok {
		return false
	}
	return v.GetBoolValue()
}

func (r *structReader) integer(name string) int64 {
	s := r.str(name)
	if r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("field %q: %w", name, err)
	}
	return n
}

func (r *structReader) list(name string) []*structpb.Value {
	v := r.value(name)
	if v == nil {
		return nil
	}
	l, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		if r.err == nil {
			r.err = fmt.Errorf("field %q: expected list", name)
		}
		return nil
	}
	return l.ListValue.GetValues()
}

// StructToMessage decodes a struct produced by MessageToStruct.
func StructToMessage(s *structpb.Struct) (laserscan.Message, error) {
	r := &structReader{fields: s.GetFields()}
	m := laserscan.Message{
		Seq:            uint64(r.integer(fieldSeq)),
		Stamp:          time.Duration(r.integer(fieldStampNanos)),
		FrameID:        r.str(fieldFrameID),
		AngleMin:       r.number(fieldAngleMin),
		AngleMax:       r.number(fieldAngleMax),
		AngleIncrement: r.number(fieldAngleIncrement),
		TimeIncrement:  r.number(fieldTimeIncrement),
		ScanTime:       r.number(fieldScanTime),
		RangeMin:       r.number(fieldRangeMin),
		RangeMax:       r.number(fieldRangeMax),
		Failed:         r.boolean(fieldFailed),
		Stale:          r.boolean(fieldStale),
	}
	ranges := r.list(fieldRanges)
	intensities := r.list(fieldIntensities)
	if r.err != nil {
		return laserscan.Message{}, r.err
	}

	m.Ranges = make(laserscan.Ranges, len(ranges))
	for i, v := range ranges {
		switch k := v.GetKind().(type) {
		case *structpb.Value_NullValue:
			m.Ranges[i] = float32(math.Inf(1))
		case *structpb.Value_NumberValue:
			m.Ranges[i] = float32(k.NumberValue)
		default:
			return laserscan.Message{}, fmt.Errorf("range %d: expected number or null", i)
		}
	}
	m.Intensities = make([]float32, len(intensities))
	for i, v := range intensities {
		k, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return laserscan.Message{}, fmt.Errorf("intensity %d: expected number", i)
		}
		m.Intensities[i] = float32(k.NumberValue)
	}
	return m, nil
}
