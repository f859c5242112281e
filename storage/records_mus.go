package storage

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/servicefinder/core"
)

// codec is the shape shared by mus-go serializers.
type codec[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
}

var (
	// RecordMUS serializes core.Record values.
	RecordMUS = recordCodec{}
	// CheckpointMUS serializes core.Checkpoint values.
	CheckpointMUS = checkpointCodec{}

	stringsMUS  = sliceCodec[string]{elem: ord.String}
	vectorMUS   = sliceCodec[float32]{elem: raw.Float32}
	failuresMUS = sliceCodec[core.Failure]{elem: failureCodec{}}
	timeMUS     = timeCodec{}
)

// sliceCodec encodes a length-prefixed sequence of elements.
type sliceCodec[T any] struct {
	elem codec[T]
}

func (c sliceCodec[T]) Marshal(v []T, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(v), bs)
	for _, e := range v {
		n += c.elem.Marshal(e, bs[n:])
	}
	return
}

func (c sliceCodec[T]) Unmarshal(bs []byte) (v []T, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return
	}
	// every element occupies at least one byte
	if length < 0 || length > len(bs)-n {
		err = ErrTruncatedData
		return
	}
	if length == 0 {
		return
	}
	v = make([]T, length)
	var m int
	for i := range v {
		v[i], m, err = c.elem.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return
		}
	}
	return
}

func (c sliceCodec[T]) Size(v []T) (size int) {
	size = varint.PositiveInt.Size(len(v))
	for _, e := range v {
		size += c.elem.Size(e)
	}
	return
}

// Now returns the current UTC time truncated to the microsecond precision
// that records and checkpoints are stored with.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// timeCodec stores UTC microseconds; the zero time is stored as 0.
type timeCodec struct{}

func (timeCodec) micros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func (c timeCodec) Marshal(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(c.micros(t), bs)
}

func (timeCodec) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || us == 0 {
		return
	}
	t = time.UnixMicro(us).UTC()
	return
}

func (c timeCodec) Size(t time.Time) int {
	return varint.Int64.Size(c.micros(t))
}

// marshalStrings writes fields in order.
func marshalStrings(fields []*string, bs []byte) (n int) {
	for _, f := range fields {
		n += ord.String.Marshal(*f, bs[n:])
	}
	return
}

func unmarshalStrings(fields []*string, bs []byte) (n int, err error) {
	var m int
	for _, f := range fields {
		*f, m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return
		}
	}
	return
}

func sizeStrings(fields []*string) (size int) {
	for _, f := range fields {
		size += ord.String.Size(*f)
	}
	return
}

func recordStrings(r *core.Record) []*string {
	return []*string{&r.ID, &r.Name, &r.Subtitle, &r.Description, &r.Address, &r.Phone, &r.Website}
}

func detailStrings(d *core.Details) []*string {
	return []*string{
		&d.FullDescription, &d.Eligibility, &d.ApplicationProcess, &d.DocumentsRequired,
		&d.Languages, &d.Fees, &d.Accessibility, &d.HoursOfOperation, &d.ServiceAreas,
		&d.MailingAddress,
	}
}

type recordCodec struct{}

func (recordCodec) Marshal(r core.Record, bs []byte) (n int) {
	n = marshalStrings(recordStrings(&r), bs)
	n += stringsMUS.Marshal(r.Locations, bs[n:])
	n += stringsMUS.Marshal(r.SubtopicIDs, bs[n:])

	n += ord.Bool.Marshal(r.Details != nil, bs[n:])
	if r.Details != nil {
		n += marshalStrings(detailStrings(r.Details), bs[n:])
	}

	n += ord.Bool.Marshal(r.Embedding != nil, bs[n:])
	if r.Embedding != nil {
		n += vectorMUS.Marshal(r.Embedding.Vector, bs[n:])
		n += ord.String.Marshal(r.Embedding.Model, bs[n:])
	}

	n += timeMUS.Marshal(r.InsertedAt, bs[n:])
	n += timeMUS.Marshal(r.UpdatedAt, bs[n:])
	return
}

func (recordCodec) Unmarshal(bs []byte) (r core.Record, n int, err error) {
	n, err = unmarshalStrings(recordStrings(&r), bs)
	if err != nil {
		return
	}
	var m int
	r.Locations, m, err = stringsMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	r.SubtopicIDs, m, err = stringsMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}

	var present bool
	present, m, err = ord.Bool.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	if present {
		r.Details = &core.Details{}
		m, err = unmarshalStrings(detailStrings(r.Details), bs[n:])
		n += m
		if err != nil {
			return
		}
	}

	present, m, err = ord.Bool.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	if present {
		r.Embedding = &core.Embedding{}
		r.Embedding.Vector, m, err = vectorMUS.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return
		}
		r.Embedding.Model, m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return
		}
	}

	r.InsertedAt, m, err = timeMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	r.UpdatedAt, m, err = timeMUS.Unmarshal(bs[n:])
	n += m
	return
}

func (recordCodec) Size(r core.Record) (size int) {
	size = sizeStrings(recordStrings(&r))
	size += stringsMUS.Size(r.Locations)
	size += stringsMUS.Size(r.SubtopicIDs)
	size += ord.Bool.Size(r.Details != nil)
	if r.Details != nil {
		size += sizeStrings(detailStrings(r.Details))
	}
	size += ord.Bool.Size(r.Embedding != nil)
	if r.Embedding != nil {
		size += vectorMUS.Size(r.Embedding.Vector)
		size += ord.String.Size(r.Embedding.Model)
	}
	size += timeMUS.Size(r.InsertedAt)
	size += timeMUS.Size(r.UpdatedAt)
	return
}

type failureCodec struct{}

func failureStrings(f *core.Failure) []*string {
	return []*string{&f.ID, &f.Name, &f.Error}
}

func (failureCodec) Marshal(f core.Failure, bs []byte) int {
	return marshalStrings(failureStrings(&f), bs)
}

func (failureCodec) Unmarshal(bs []byte) (f core.Failure, n int, err error) {
	n, err = unmarshalStrings(failureStrings(&f), bs)
	return
}

func (failureCodec) Size(f core.Failure) int {
	return sizeStrings(failureStrings(&f))
}

type checkpointCodec struct{}

func checkpointCounters(c *core.Checkpoint) []*int {
	return []*int{&c.Total, &c.Processed, &c.Succeeded, &c.Failed, &c.Batches}
}

func (checkpointCodec) Marshal(c core.Checkpoint, bs []byte) (n int) {
	n = marshalStrings([]*string{&c.JobName, &c.RunID}, bs)
	for _, v := range checkpointCounters(&c) {
		n += varint.Int.Marshal(*v, bs[n:])
	}
	n += failuresMUS.Marshal(c.Failures, bs[n:])
	n += timeMUS.Marshal(c.UpdatedAt, bs[n:])
	return
}

func (checkpointCodec) Unmarshal(bs []byte) (c core.Checkpoint, n int, err error) {
	n, err = unmarshalStrings([]*string{&c.JobName, &c.RunID}, bs)
	if err != nil {
		return
	}
	var m int
	for _, v := range checkpointCounters(&c) {
		*v, m, err = varint.Int.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return
		}
	}
	c.Failures, m, err = failuresMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	c.UpdatedAt, m, err = timeMUS.Unmarshal(bs[n:])
	n += m
	return
}

func (checkpointCodec) Size(c core.Checkpoint) (size int) {
	size = sizeStrings([]*string{&c.JobName, &c.RunID})
	for _, v := range checkpointCounters(&c) {
		size += varint.Int.Size(*v)
	}
	size += failuresMUS.Size(c.Failures)
	size += timeMUS.Size(c.UpdatedAt)
	return
}
