/*
NAME
  continuity_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ts

import "testing"

func TestContinuityFirstThenNext(t *testing.T) {
	ct := NewContinuityTracker()
	if tr := ct.Check(0x100, 5); tr != TransitionFirst {
		t.Errorf("first Check = %v, want TransitionFirst", tr)
	}
	if tr := ct.Check(0x100, 6); tr != TransitionNext {
		t.Errorf("Check = %v, want TransitionNext", tr)
	}
}

func TestContinuityWrapsAt15(t *testing.T) {
	ct := NewContinuityTracker()
	ct.Check(0x100, 15)
	if tr := ct.Check(0x100, 0); tr != TransitionNext {
		t.Errorf("Check after 15 = %v, want TransitionNext (wrap to 0)", tr)
	}
}

func TestContinuityDuplicateTolerated(t *testing.T) {
	ct := NewContinuityTracker()
	ct.Check(0x100, 5)
	if tr := ct.Check(0x100, 5); tr != TransitionDuplicate {
		t.Errorf("Check repeat = %v, want TransitionDuplicate", tr)
	}
}

func TestContinuityGapIsBreak(t *testing.T) {
	ct := NewContinuityTracker()
	ct.Check(0x100, 5)
	if tr := ct.Check(0x100, 7); tr != TransitionBreak {
		t.Errorf("Check gap = %v, want TransitionBreak", tr)
	}
}

func TestContinuityPerPIDIndependence(t *testing.T) {
	ct := NewContinuityTracker()
	ct.Check(0x100, 5)
	if tr := ct.Check(0x200, 9); tr != TransitionFirst {
		t.Errorf("Check on new PID = %v, want TransitionFirst", tr)
	}
}

func TestContinuityResetForgetsState(t *testing.T) {
	ct := NewContinuityTracker()
	ct.Check(0x100, 5)
	ct.Reset(0x100)
	if tr := ct.Check(0x100, 6); tr != TransitionFirst {
		t.Errorf("Check after Reset = %v, want TransitionFirst", tr)
	}
}
