package device

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amimof/huego"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	on     bool
	states map[int]huego.State
}

func (b *fakeBridge) GetLightContext(_ context.Context, i int) (*huego.Light, error) {
	if i == 404 {
		return nil, errors.New("resource not available")
	}
	return &huego.Light{ID: i, State: &huego.State{On: b.on}}, nil
}

func (b *fakeBridge) SetLightStateContext(_ context.Context, i int, s huego.State) (*huego.Response, error) {
	if b.states == nil {
		b.states = map[int]huego.State{}
	}
	b.states[i] = s
	return &huego.Response{}, nil
}

func TestHueState(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		args    []any
		want    huego.State
		wantErr error
	}{
		{"on", "turnOn", nil, huego.State{On: true}, nil},
		{"off", "turnOff", nil, huego.State{On: false}, nil},
		{"full", "setValue", []any{100.0}, huego.State{On: true, Bri: 254}, nil},
		{"half", "setBrightness", []any{50}, huego.State{On: true, Bri: 127}, nil},
		{"tiny", "setBrightness", []any{0.1}, huego.State{On: true, Bri: 1}, nil},
		{"zero_is_off", "setValue", []any{0.0}, huego.State{On: false}, nil},
		{"string_number", "setValue", []any{"100"}, huego.State{On: true, Bri: 254}, nil},
		{"ct_clamped", "setColorTemperature", []any{1000.0, nil}, huego.State{On: true, Ct: 500}, nil},
		{"ct_transition", "setColorTemperature", []any{300.0, 2.0}, huego.State{On: true, Ct: 300, TransitionTime: 20}, nil},
		{"alert", "setProperty", []any{"alert", "select"}, huego.State{On: true, Alert: "select"}, nil},
		{"unknown_property", "setProperty", []any{"hue", 1}, huego.State{}, ErrUnsupportedCommand},
		{"missing_value", "setValue", nil, huego.State{}, ErrBadArgument},
		{"bad_value", "setValue", []any{true}, huego.State{}, ErrBadArgument},
		{"unsupported", "pressButton", []any{1}, huego.State{}, ErrUnsupportedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hueState(tt.cmd, tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHueDispatcher_Toggle(t *testing.T) {
	bridge := &fakeBridge{on: true}
	d := &HueDispatcher{bridge: bridge}

	require.NoError(t, d.CallDevice(context.Background(), 3, "toggle"))
	assert.False(t, bridge.states[3].On)

	bridge.on = false
	require.NoError(t, d.CallDevice(context.Background(), 3, "toggle"))
	assert.True(t, bridge.states[3].On)

	assert.Error(t, d.CallDevice(context.Background(), 404, "toggle"))
}

func TestHueDispatcher_Unsupported(t *testing.T) {
	bridge := &fakeBridge{}
	d := &HueDispatcher{bridge: bridge}

	err := d.CallDevice(context.Background(), 1, "setArmed", true)
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
	assert.Empty(t, bridge.states)
}

type fakeToken struct {
	paho.Token
	timeout bool
	err     error
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu    sync.Mutex
	sent  []published
	token *fakeToken
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	if p.token != nil {
		return p.token
	}
	return &fakeToken{}
}

func TestMQTTDispatcher_Publish(t *testing.T) {
	pub := &fakePublisher{}
	d := newMQTTDispatcher(pub, "home/devices", 1)

	require.NoError(t, d.CallDevice(context.Background(), 12, "setThermostatSetpoint", 21.5, "heat"))
	require.Len(t, pub.sent, 1)

	msg := pub.sent[0]
	assert.Equal(t, "home/devices/12/set", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "setThermostatSetpoint", got["command"])
	assert.Equal(t, []any{21.5, "heat"}, got["args"])
	assert.Equal(t, 12.0, got["device"])
}

func TestMQTTDispatcher_NoArgsIsEmptyList(t *testing.T) {
	pub := &fakePublisher{}
	d := newMQTTDispatcher(pub, "devices", 0)

	require.NoError(t, d.CallDevice(context.Background(), 1, "turnOn"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.sent[0].payload, &got))
	assert.Equal(t, []any{}, got["args"])
}

func TestMQTTDispatcher_Errors(t *testing.T) {
	pub := &fakePublisher{token: &fakeToken{timeout: true}}
	d := newMQTTDispatcher(pub, "devices", 0)
	assert.ErrorContains(t, d.CallDevice(context.Background(), 1, "turnOn"), "timed out")

	pub.token = &fakeToken{err: errors.New("not connected")}
	assert.ErrorContains(t, d.CallDevice(context.Background(), 1, "turnOn"), "not connected")
}

type countingDispatcher struct {
	mu    sync.Mutex
	calls int
}

func (c *countingDispatcher) CallDevice(context.Context, int, string, ...any) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil
}

func TestRateLimited_Forwards(t *testing.T) {
	next := &countingDispatcher{}
	r := NewRateLimited(next, 100)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.CallDevice(context.Background(), i, "turnOn"))
	}
	assert.Equal(t, 3, next.calls)
}

func TestRateLimited_ContextCancelled(t *testing.T) {
	next := &countingDispatcher{}
	r := NewRateLimited(next, 0.001)

	// First call consumes the only token
	require.NoError(t, r.CallDevice(context.Background(), 1, "turnOn"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, r.CallDevice(ctx, 1, "turnOn"))
	assert.Equal(t, 1, next.calls)
}

func TestLogDispatcher(t *testing.T) {
	assert.NoError(t, NewLogDispatcher().CallDevice(context.Background(), 7, "setMode", "away"))
}
