package bounds

import "testing"

func TestCheckDeclared(t *testing.T) {
	limits := Limits{MaxTrainingSeconds: 60, MaxMemoryMB: 1024}
	if err := CheckDeclared(Declared{TrainingSeconds: 30, MemoryMB: 512}, limits); err != nil {
		t.Errorf("within limits should pass: %v", err)
	}
	if err := CheckDeclared(Declared{TrainingSeconds: 120, MemoryMB: 512}, limits); err == nil {
		t.Error("training time over limit should fail")
	}
	if err := CheckDeclared(Declared{TrainingSeconds: 30, MemoryMB: 2048}, limits); err == nil {
		t.Error("memory over limit should fail")
	}
}

func TestCheckDeclaredZeroLimitsDisableChecks(t *testing.T) {
	if err := CheckDeclared(Declared{TrainingSeconds: 1e9, MemoryMB: 1 << 30}, Limits{}); err != nil {
		t.Errorf("zero-value limits should disable all checks, got: %v", err)
	}
}

func TestCheckRevealed(t *testing.T) {
	limits := Limits{MaxParamBytes: 10, MinDimensions: 2, MaxDimensions: 5}
	if err := CheckRevealed(make([]byte, 5), 3, limits); err != nil {
		t.Errorf("within limits should pass: %v", err)
	}
	if err := CheckRevealed(make([]byte, 20), 3, limits); err == nil {
		t.Error("oversized parameters should fail")
	}
	if err := CheckRevealed(make([]byte, 5), 1, limits); err == nil {
		t.Error("dimension count below minimum should fail")
	}
	if err := CheckRevealed(make([]byte, 5), 9, limits); err == nil {
		t.Error("dimension count above maximum should fail")
	}
}

func TestOffensesFirstIsLenient(t *testing.T) {
	o := NewOffenses()
	if slash := o.Record("peer1"); slash {
		t.Error("first offense should not slash")
	}
	if slash := o.Record("peer1"); !slash {
		t.Error("second offense in the same window should slash")
	}
}

func TestOffensesResetWindow(t *testing.T) {
	o := NewOffenses()
	o.Record("peer1")
	o.Record("peer1")
	o.ResetWindow()
	if slash := o.Record("peer1"); slash {
		t.Error("offense count should reset at window rollover")
	}
}
