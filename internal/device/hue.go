package device

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
)

// hueBridge is the part of *huego.Bridge the dispatcher uses.
type hueBridge interface {
	GetLightContext(ctx context.Context, i int) (*huego.Light, error)
	SetLightStateContext(ctx context.Context, i int, l huego.State) (*huego.Response, error)
}

// HueDispatcher maps device ids to Hue light ids and commands to light states.
//
// Supported commands:
//
//	turnOn, turnOff, toggle
//	setValue / setBrightness (0-100 %, 0 turns the light off)
//	setColorTemperature (mirek, transition seconds)
//	setProperty ("alert" | "effect", value)
type HueDispatcher struct {
	bridge  hueBridge
	timeout time.Duration
}

// NewHueDispatcher creates a dispatcher for the bridge at address. A zero
// timeout leaves bridge requests bounded only by the caller's context.
func NewHueDispatcher(address, token string, timeout time.Duration) *HueDispatcher {
	return &HueDispatcher{bridge: huego.New(address, token), timeout: timeout}
}

// CallDevice applies the command to Hue light id.
func (d *HueDispatcher) CallDevice(ctx context.Context, id int, cmd string, args ...any) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var state huego.State

	if cmd == "toggle" {
		light, err := d.bridge.GetLightContext(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get light %d: %w", id, err)
		}
		state.On = light.State == nil || !light.State.On
	} else {
		var err error
		state, err = hueState(cmd, args)
		if err != nil {
			return err
		}
	}

	if _, err := d.bridge.SetLightStateContext(ctx, id, state); err != nil {
		return fmt.Errorf("failed to set state of light %d: %w", id, err)
	}

	log.Debug().
		Int("light", id).
		Str("cmd", cmd).
		Bool("on", state.On).
		Uint8("bri", state.Bri).
		Msg("Hue light updated")
	return nil
}

// hueState translates a command into the state to send.
func hueState(cmd string, args []any) (huego.State, error) {
	switch cmd {
	case "turnOn":
		return huego.State{On: true}, nil

	case "turnOff":
		return huego.State{On: false}, nil

	case "setValue", "setBrightness":
		raw, err := argAt(args, 0)
		if err != nil {
			return huego.State{}, err
		}
		pct, err := number(raw)
		if err != nil {
			return huego.State{}, err
		}
		if pct <= 0 {
			return huego.State{On: false}, nil
		}
		return huego.State{On: true, Bri: percentToBri(pct)}, nil

	case "setColorTemperature":
		raw, err := argAt(args, 0)
		if err != nil {
			return huego.State{}, err
		}
		mirek, err := number(raw)
		if err != nil {
			return huego.State{}, err
		}
		// Clamp to the range the bridge accepts
		mirek = math.Max(153, math.Min(500, mirek))

		state := huego.State{On: true, Ct: uint16(mirek)}
		if len(args) > 1 && args[1] != nil {
			secs, err := number(args[1])
			if err != nil {
				return huego.State{}, err
			}
			// Transition time is in 100ms steps
			state.TransitionTime = uint16(math.Max(0, secs) * float64(time.Second/(100*time.Millisecond)))
		}
		return state, nil

	case "setProperty":
		name, err := argAt(args, 0)
		if err != nil {
			return huego.State{}, err
		}
		raw, err := argAt(args, 1)
		if err != nil {
			return huego.State{}, err
		}
		value := fmt.Sprint(raw)
		switch name {
		case "alert":
			return huego.State{On: true, Alert: value}, nil
		case "effect":
			return huego.State{On: true, Effect: value}, nil
		default:
			return huego.State{}, fmt.Errorf("%w: hue property %v", ErrUnsupportedCommand, name)
		}

	default:
		return huego.State{}, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
	}
}

// percentToBri scales 0-100 % to the bridge's 1-254 brightness range.
func percentToBri(pct float64) uint8 {
	bri := math.Round(pct * 254 / 100)
	if bri < 1 {
		bri = 1
	}
	if bri > 254 {
		bri = 254
	}
	return uint8(bri)
}
