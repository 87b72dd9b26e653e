package workflow

import "testing"

func TestValidMatrixEdges(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{Inbox, NeedsAction, true},
		{Inbox, Plans, false},
		{NeedsAction, ActionProcessing, true},
		{ActionProcessing, Plans, true},
		{ActionProcessing, Retry, true},
		{Plans, PendingApproval, true},
		{Plans, ExecutionPending, true},
		{PendingApproval, ApprovalReview, true},
		{ApprovalReview, Approved, true},
		{ApprovalReview, Rejected, true},
		{Approved, Executing, true},
		{Executing, Executed, true},
		{Executed, Done, true},
		{Done, Archived, true},
		{Rejected, DeadLetter, true},
		{Failed, Retry, true},
		{Failed, DeadLetter, true},
		{Done, Failed, false},
		{Archived, Done, false},
	}
	for _, c := range cases {
		got := Valid(c.from, c.to, "")
		if got != c.want {
			t.Errorf("Valid(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestValidRetrySourceState(t *testing.T) {
	if !Valid(Retry, NeedsAction, NeedsAction) {
		t.Error("expected RETRY -> source state to be valid")
	}
	if !Valid(Retry, DeadLetter, NeedsAction) {
		t.Error("expected RETRY -> DEAD_LETTER to always be valid")
	}
	if Valid(Retry, Approved, NeedsAction) {
		t.Error("expected RETRY -> unrelated state to be invalid")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []State{Done, Archived, DeadLetter} {
		if !IsTerminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	if IsTerminal(Plans) {
		t.Error("expected PLANS to be non-terminal")
	}
}

func TestEventTypeForMapping(t *testing.T) {
	cases := []struct {
		from, to State
		want     string
	}{
		{Inbox, NeedsAction, "action.generated"},
		{NeedsAction, Plans, "plan.created"},
		{Plans, PendingApproval, "approval.required"},
		{PendingApproval, Approved, "action.approved"},
		{Executed, Done, "plan.execution_completed"},
		{Rejected, DeadLetter, "action.failed"},
	}
	for _, c := range cases {
		if got := EventTypeFor(c.from, c.to); got != c.want {
			t.Errorf("EventTypeFor(%s, %s) = %s, want %s", c.from, c.to, got, c.want)
		}
	}
}
