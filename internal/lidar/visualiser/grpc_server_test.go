package visualiser

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestMessageStruct_RoundTrip(t *testing.T) {
	want := testMessage("front", 1<<60)
	want.Stamp = 1<<62 + 3
	want.Failed = true

	s := MessageToStruct(want)
	assert.Equal(t, structpb.NullValue_NULL_VALUE, s.Fields[fieldRanges].GetListValue().GetValues()[1].GetNullValue())

	// Through the wire encoding as well.
	b, err := proto.Marshal(s)
	require.NoError(t, err)
	var decoded structpb.Struct
	require.NoError(t, proto.Unmarshal(b, &decoded))

	got, err := StructToMessage(&decoded)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, math.IsInf(float64(got.Ranges[1]), 1))
}

func TestStructToMessage_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*structpb.Struct)
	}{
		{"missing seq", func(s *structpb.Struct) { delete(s.Fields, fieldSeq) }},
		{"seq not a string", func(s *structpb.Struct) { s.Fields[fieldSeq] = structpb.NewNumberValue(1) }},
		{"seq not a number", func(s *structpb.Struct) { s.Fields[fieldSeq] = structpb.NewStringValue("one") }},
		{"angle not a number", func(s *structpb.Struct) { s.Fields[fieldAngleMin] = structpb.NewStringValue("0") }},
		{"ranges not a list", func(s *structpb.Struct) { s.Fields[fieldRanges] = structpb.NewNumberValue(1) }},
		{"range not a number", func(s *structpb.Struct) {
			s.Fields[fieldRanges] = structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{structpb.NewStringValue("x")}})
		}},
		{"intensity null", func(s *structpb.Struct) {
			s.Fields[fieldIntensities] = structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{structpb.NewNullValue()}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := MessageToStruct(testMessage("front", 1))
			tt.mutate(s)
			_, err := StructToMessage(s)
			assert.Error(t, err)
		})
	}
}

func TestScanServiceDesc(t *testing.T) {
	assert.Equal(t, ScanServiceName, ScanServiceDesc.ServiceName)
	require.Len(t, ScanServiceDesc.Streams, 1)
	assert.True(t, ScanServiceDesc.Streams[0].ServerStreams)
	assert.Equal(t, "/"+ScanServiceName+"/"+ScanServiceDesc.Streams[0].StreamName, ScanServiceStreamScans)
}
