package board

import (
	"context"
	"fmt"

	"voiceboard-go/errcode"
	"voiceboard-go/services/settings"
	"voiceboard-go/services/tools"
)

const (
	ToolDeviceStatus  = "self.get_device_status"
	ToolSetVolume     = "self.audio_speaker.set_volume"
	ToolSetBrightness = "self.screen.set_brightness"
	ToolPressToTalk   = "self.set_press_to_talk"

	pressToTalkKey = "press_to_talk"
)

func pressToTalk(vendor *settings.Settings) bool {
	return vendor != nil && vendor.Int(pressToTalkKey, 0) != 0
}

func registerPressToTalk(r tools.Registrar, vendor *settings.Settings) error {
	return r.AddTool(tools.Descriptor{
		Name: ToolPressToTalk,
		Description: "Switch between press to talk mode (hold the button while speaking) and click to talk mode (click once to start).\n" +
			"The mode can be `press_to_talk` or `click_to_talk`.",
		Properties: []tools.Property{tools.StringProp("mode")},
		Handler: func(_ context.Context, args tools.Args) (tools.Value, error) {
			var on int
			switch mode := args.String("mode"); mode {
			case "press_to_talk":
				on = 1
			case "click_to_talk":
			default:
				return tools.Value{}, &errcode.E{C: errcode.InvalidArgs, Op: ToolPressToTalk, Msg: fmt.Sprintf("invalid mode %q", mode)}
			}
			if err := vendor.SetInt(pressToTalkKey, on); err != nil {
				return tools.Value{}, err
			}
			return tools.Bool(true), nil
		},
	})
}

type toolHost interface {
	DeviceStatusJSON() string
	AudioCodec() AudioCodec
	Backlight() Backlight
}

// registerCommonTools adds the status tool and the tools of whichever
// capabilities the board has.
func registerCommonTools(r tools.Registrar, b toolHost) error {
	err := r.AddTool(tools.Descriptor{
		Name: ToolDeviceStatus,
		Description: "Provides the real-time information of the device, including the current status of the audio speaker, screen, battery and network.\n" +
			"Use this tool for answering questions about the current condition of the device, and as the first step before controlling it.",
		Handler: func(context.Context, tools.Args) (tools.Value, error) {
			return tools.RawJSON(b.DeviceStatusJSON()), nil
		},
	})
	if err != nil {
		return err
	}

	if codec := b.AudioCodec(); codec != nil {
		err := r.AddTool(tools.Descriptor{
			Name:        ToolSetVolume,
			Description: "Set the volume of the audio speaker. If the current volume is unknown, call `self.get_device_status` first.",
			Properties:  []tools.Property{tools.IntRange("volume", 0, 100)},
			Handler: func(_ context.Context, args tools.Args) (tools.Value, error) {
				if err := codec.SetOutputVolume(args.Int("volume")); err != nil {
					return tools.Value{}, err
				}
				return tools.Bool(true), nil
			},
		})
		if err != nil {
			return err
		}
	}

	if bl := b.Backlight(); bl != nil {
		err := r.AddTool(tools.Descriptor{
			Name:        ToolSetBrightness,
			Description: "Set the brightness of the screen.",
			Properties:  []tools.Property{tools.IntRange("brightness", 0, 100)},
			Handler: func(_ context.Context, args tools.Args) (tools.Value, error) {
				if err := bl.SetBrightness(args.Int("brightness"), true); err != nil {
					return tools.Value{}, err
				}
				return tools.Bool(true), nil
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
