package domain

import "testing"

func TestValidateTransitionHappyPath(t *testing.T) {
	path := []Status{StatusNew, StatusContacted, StatusQualified, StatusProposal, StatusConverted}
	for i := 1; i < len(path); i++ {
		if err := ValidateTransition(path[i-1], path[i]); err != nil {
			t.Errorf("ValidateTransition(%s, %s) = %v, want nil", path[i-1], path[i], err)
		}
	}
}

func TestLostAndNurturingReachableFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []Status{StatusNew, StatusContacted, StatusQualified, StatusProposal, StatusNurturing}
	for _, from := range nonTerminal {
		for _, to := range []Status{StatusLost, StatusNurturing} {
			if from == to {
				continue
			}
			if err := ValidateTransition(from, to); err != nil {
				t.Errorf("ValidateTransition(%s, %s) = %v, want nil", from, to, err)
			}
		}
	}
}

func TestTerminalStatusesRejectTransitions(t *testing.T) {
	for _, from := range []Status{StatusConverted, StatusLost} {
		for _, to := range []Status{StatusNew, StatusContacted, StatusNurturing, StatusQualified} {
			if err := ValidateTransition(from, to); err == nil {
				t.Errorf("ValidateTransition(%s, %s) = nil, want error", from, to)
			}
		}
	}
}

func TestValidateTransitionRejectsSelfAndUnknown(t *testing.T) {
	if err := ValidateTransition(StatusNew, StatusNew); err == nil {
		t.Error("self transition accepted, want error")
	}
	if err := ValidateTransition(StatusNew, Status("archived")); err == nil {
		t.Error("unknown status accepted, want error")
	}
}

func TestIsTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusNew:       false,
		StatusContacted: false,
		StatusQualified: false,
		StatusProposal:  false,
		StatusNurturing: false,
		StatusConverted: true,
		StatusLost:      true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}
