package model

import "testing"

func TestActionKeyRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		action Action
		key    ActionKey
	}{
		{"add generator", Action{Type: ActionAddGenerator, Generator: GeneratorOnshoreWind}, "add_generator:onshore_wind"},
		{"add storage", Action{Type: ActionAddStorage, Generator: GeneratorBatteryStorage}, "add_storage:battery_storage"},
		{"add offset", Action{Type: ActionAddOffset, Offset: OffsetForest}, "add_offset:forest"},
		{"adjust operation", Action{Type: ActionAdjustOperation, Generator: GeneratorCoal, Operation: 50}, "adjust_operation:coal"},
		{"upgrade", Action{Type: ActionUpgradeEfficiency}, "upgrade_efficiency"},
		{"close", Action{Type: ActionCloseGenerator}, "close_generator"},
		{"no-op", Action{Type: ActionNoOp}, "no_op"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := tc.action.Key()
			if key != tc.key {
				t.Fatalf("Key() = %q, want %q", key, tc.key)
			}
			parsed, err := ParseActionKey(key)
			if err != nil {
				t.Fatalf("ParseActionKey(%q): %v", key, err)
			}
			if parsed.Type != tc.action.Type {
				t.Errorf("parsed type = %q, want %q", parsed.Type, tc.action.Type)
			}
			if parsed.Generator != tc.action.Generator {
				t.Errorf("parsed generator = %q, want %q", parsed.Generator, tc.action.Generator)
			}
			if parsed.Offset != tc.action.Offset {
				t.Errorf("parsed offset = %q, want %q", parsed.Offset, tc.action.Offset)
			}
		})
	}
}

func TestActionKeyExcludesCountAndTarget(t *testing.T) {
	a := Action{Type: ActionAddGenerator, Generator: GeneratorNuclear, Count: 3, TargetID: "gen_7"}
	b := Action{Type: ActionAddGenerator, Generator: GeneratorNuclear}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ for same technology: %q vs %q", a.Key(), b.Key())
	}
}

func TestParseActionKeyErrors(t *testing.T) {
	for _, key := range []ActionKey{"add_generator", "add_offset", "launch_rocket:moon", ""} {
		if _, err := ParseActionKey(key); err == nil {
			t.Errorf("ParseActionKey(%q): want error, got nil", key)
		}
	}
}

func TestGeneratorTypeClassification(t *testing.T) {
	if !GeneratorOnshoreWind.IsIntermittent() || GeneratorNuclear.IsIntermittent() {
		t.Error("intermittent classification wrong")
	}
	if !GeneratorBatteryStorage.IsStorage() || GeneratorCoal.IsStorage() {
		t.Error("storage classification wrong")
	}
	if GeneratorBatteryStorage.IsIntermittent() {
		t.Error("storage must not count as intermittent")
	}
}
