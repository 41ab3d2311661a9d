// Package event turns upload notification documents into transform events.
package event

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"

	"csvflow/internal/transform"
)

var ErrMalformed = errors.New("event: malformed JSON document")

// Decode accepts, in order of precedence:
//   - bucket notifications: {"Records":[{"s3":{"bucket":{"name"},"object":{"key"}}}]}
//   - object-created bus events: {"detail":{"bucket":{"name"},"object":{"key"}}}
//   - the native form: {"entries":[{"bucket","key"}]}
//
// A document of none of these shapes yields an event without entries.
func Decode(doc []byte) (transform.Event, error) {
	if !gjson.ValidBytes(doc) {
		return transform.Event{}, ErrMalformed
	}
	root := gjson.ParseBytes(doc)

	if recs := root.Get("Records"); recs.IsArray() {
		return fromRecords(recs)
	}
	if detail := root.Get("detail"); detail.IsObject() {
		return fromDetail(detail), nil
	}
	if entries := root.Get("entries"); entries.IsArray() {
		return fromEntries(entries), nil
	}
	return transform.Event{}, nil
}

func fromRecords(recs gjson.Result) (transform.Event, error) {
	var ev transform.Event
	for i, r := range recs.Array() {
		raw := r.Get("s3.object.key").String()
		// notification keys are form-encoded
		key, err := url.QueryUnescape(raw)
		if err != nil {
			return transform.Event{}, fmt.Errorf("event: record %d key %q: %w", i, raw, err)
		}
		ev.Entries = append(ev.Entries, transform.Entry{
			Bucket: r.Get("s3.bucket.name").String(),
			Key:    key,
		})
	}
	return ev, nil
}

func fromDetail(d gjson.Result) transform.Event {
	return transform.Event{Entries: []transform.Entry{{
		Bucket: d.Get("bucket.name").String(),
		Key:    d.Get("object.key").String(),
	}}}
}

func fromEntries(entries gjson.Result) transform.Event {
	var ev transform.Event
	entries.ForEach(func(_, e gjson.Result) bool {
		ev.Entries = append(ev.Entries, transform.Entry{
			Bucket: e.Get("bucket").String(),
			Key:    e.Get("key").String(),
		})
		return true
	})
	return ev
}
