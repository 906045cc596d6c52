package query

import (
	"testing"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

func mustPred(t *testing.T, key string, op model.Op, values ...model.Property) model.PropertyPredicate {
	t.Helper()
	p, err := model.NewPredicate(key, op, values...)
	if err != nil {
		t.Fatalf("Failed to build predicate: %v", err)
	}
	return p
}

func TestMatches(t *testing.T) {
	s := model.NewString
	i := model.NewInt

	tests := []struct {
		name    string
		pred    model.PropertyPredicate
		value   model.Property
		present bool
		want    bool
	}{
		{"has present", mustPred(t, "k", model.OpHas), model.Property{}, true, true},
		{"has absent", mustPred(t, "k", model.OpHas), model.Property{}, false, false},
		{"eq", mustPred(t, "k", model.OpEq, s("a")), s("a"), true, true},
		{"eq other kind", mustPred(t, "k", model.OpEq, i(1)), model.NewFloat(1), true, false},
		{"ge inclusive", mustPred(t, "k", model.OpGe, i(26)), i(26), true, true},
		{"gt exclusive", mustPred(t, "k", model.OpGt, i(26)), i(26), true, false},
		{"le inclusive", mustPred(t, "k", model.OpLe, i(26)), i(26), true, true},
		{"lt exclusive", mustPred(t, "k", model.OpLt, i(26)), i(26), true, false},
		{"lt below", mustPred(t, "k", model.OpLt, i(26)), i(-1), true, true},
		{"gtlt inside", mustPred(t, "k", model.OpGtLt, s("f"), s("s")), s("philip"), true, true},
		{"gtlt at lo", mustPred(t, "k", model.OpGtLt, s("f"), s("s")), s("f"), true, false},
		{"gtlt at hi", mustPred(t, "k", model.OpGtLt, s("f"), s("s")), s("s"), true, false},
		{"ge other kind", mustPred(t, "k", model.OpGe, i(0)), s("z"), true, false},
		{"eq blob", mustPred(t, "k", model.OpEq, model.NewBlob([]byte{1})), model.NewBlob([]byte{1}), true, true},
		{"bool order", mustPred(t, "k", model.OpGt, model.NewBool(false)), model.NewBool(true), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.pred, tt.value, tt.present); got != tt.want {
				t.Errorf("Matches(%s, %s) = %v, want %v", tt.pred, tt.value, got, tt.want)
			}
		})
	}
}

func TestSpanForHasCoversEveryKind(t *testing.T) {
	if !SpanFor(mustPred(t, "k", model.OpHas)).AllKinds {
		t.Error("Expected a has span to cover every kind")
	}
}
