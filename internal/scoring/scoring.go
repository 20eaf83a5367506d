// Package scoring grades a submitted raw answer against a question definition.
// It is pure: no I/O, no clock, no randomness. Grading always terminates with
// a verdict — malformed input scores (false, 0), never an error.
package scoring

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"quiz_platform_backend/internal/model"
)

// Result is the verdict for a single answer.
type Result struct {
	IsCorrect     bool
	PointsAwarded int
}

// Score evaluates raw (JSON: string | []string | number | bool, shaped by the
// question's answer type) against the question's answer key.
func Score(q *model.Question, raw json.RawMessage) Result {
	correct := false

	switch q.AnswerType {
	case model.TextAnswer:
		submitted, ok := decodeString(raw)
		if ok {
			correct = normalizeText(submitted) == normalizeText(q.CorrectAnswer)
		}
	case model.SingleChoice, model.ImageSelection:
		ids := decodeOptionIDs(raw)
		if len(ids) == 1 {
			correct = equalSets(ids, correctOptionIDs(q))
		}
	case model.MultipleChoice:
		ids := decodeOptionIDs(raw)
		if len(ids) >= 1 {
			correct = equalSets(ids, correctOptionIDs(q))
		}
	case model.TrueFalse:
		submitted, ok := decodeBool(raw)
		if ok {
			correct = submitted == q.CorrectBoolean
		}
	}

	if !correct {
		return Result{}
	}
	return Result{IsCorrect: true, PointsAwarded: q.Points}
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeBool accepts a JSON boolean or the strings "true"/"false" in any case.
func decodeBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// decodeOptionIDs normalizes a submitted option reference to a deduplicated,
// sorted id set. A single id (string or number) and an array of ids are both
// accepted; anything else yields an empty set.
func decodeOptionIDs(raw json.RawMessage) []string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	set := map[string]struct{}{}
	add := func(item interface{}) {
		switch t := item.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s != "" {
				set[s] = struct{}{}
			}
		case float64:
			set[strconv.FormatFloat(t, 'f', -1, 64)] = struct{}{}
		}
	}

	switch t := v.(type) {
	case string, float64:
		add(t)
	case []interface{}:
		for _, item := range t {
			add(item)
		}
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func correctOptionIDs(q *model.Question) []string {
	out := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if opt.IsCorrect {
			out = append(out, strconv.FormatUint(uint64(opt.ID), 10))
		}
	}
	sort.Strings(out)
	return out
}

// equalSets compares two sorted string slices as sets: no extras, no omissions.
func equalSets(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
