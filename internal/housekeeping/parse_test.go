package housekeeping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    []Target
		wantErr bool
	}{
		{"int", 10, []Target{"10"}, false},
		{"float_from_lua", 10.0, []Target{"10"}, false},
		{"int_slice", []int{1, 2}, []Target{"1", "2"}, false},
		{"string_slice", []string{"Mode", "12"}, []Target{"Mode", "12"}, false},
		{"mixed", []any{7.0, "Mode"}, []Target{"7", "Mode"}, false},
		{"typed", []Target{"Mode"}, []Target{"Mode"}, false},
		{"bare_name", "Mode", nil, true},
		{"nil", nil, nil, true},
		{"bool", true, nil, true},
		{"map", map[string]any{"a": 1}, nil, true},
		{"empty_slice", []any{}, nil, true},
		{"fractional_id", 1.5, nil, true},
		{"negative_id", -4, nil, true},
		{"nested", []any{[]any{1.0}}, nil, true},
		{"empty_name", []string{""}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTargets(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTargetList)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    Command
		wantErr bool
	}{
		{"name", "turnOn", ZeroArg{Cmd: "turnOn"}, false},
		{"single", []any{"turnOff"}, ZeroArg{Cmd: "turnOff"}, false},
		{"value", []any{"setValue", 50.0}, OneArg{Cmd: "setValue", Value: 50.0}, false},
		{"two", []any{"setSlider", 1.0, 30.0}, TwoArg{Cmd: "setSlider", Arg1: 1.0, Arg2: 30.0}, false},
		{"typed", OneArg{Cmd: "setMode", Value: "eco"}, OneArg{Cmd: "setMode", Value: "eco"}, false},
		{"empty_name", "", nil, true},
		{"too_long", []any{"a", 1, 2, 3}, nil, true},
		{"empty_seq", []any{}, nil, true},
		{"name_not_string", []any{5, 1}, nil, true},
		{"number", 5, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTarget_DeviceID(t *testing.T) {
	id, ok := Target("42").DeviceID()
	assert.True(t, ok)
	assert.Equal(t, 42, id)

	id, ok = Target("0").DeviceID()
	assert.True(t, ok)
	assert.Equal(t, 0, id)

	for _, s := range []string{"", "Mode", "-1", "+1", "1.5", " 1", "010", "00"} {
		_, ok := Target(s).DeviceID()
		assert.False(t, ok, "%q should not be a device id", s)
	}
}

func TestTask_Command(t *testing.T) {
	assert.Equal(t, ZeroArg{Cmd: "turnOn"}, Task{Cmd: "turnOn"}.Command())
	assert.Equal(t, OneArg{Cmd: "setValue", Value: 0.0}, Task{Cmd: "setValue", Value: 0.0}.Command())
	assert.Equal(t, []any{"a", "b"}, Task{Cmd: "setProperty", Arg1: "a", Arg2: "b"}.Command().Args())
}
