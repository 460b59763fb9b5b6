package tools

import (
	"context"
	"fmt"

	"voiceboard-go/errcode"
)

// Actuator is the servo surface exposed as tools.
type Actuator interface {
	SetAngle(angle float32) error
	Angle() float32
}

const (
	ServoSetAngle = "self.servo.set_angle"
	ServoGetAngle = "self.servo.get_angle"
)

// RegisterServo adds the set/get angle tools for s. maxAngle bounds the
// declared schema.
func RegisterServo(r Registrar, s Actuator, maxAngle int) error {
	if s == nil {
		return &errcode.E{C: errcode.Absent, Op: "register_servo"}
	}
	err := r.AddTool(Descriptor{
		Name:        ServoSetAngle,
		Description: fmt.Sprintf("Set the servo to an angle between 0 and %d degrees.", maxAngle),
		Properties:  []Property{IntRange("angle", 0, maxAngle)},
		Handler: func(_ context.Context, args Args) (Value, error) {
			angle := args.Int("angle")
			if err := s.SetAngle(float32(angle)); err != nil {
				return Value{}, err
			}
			return Text(fmt.Sprintf("Servo angle set to %d degrees", int(s.Angle()))), nil
		},
	})
	if err != nil {
		return err
	}
	return r.AddTool(Descriptor{
		Name:        ServoGetAngle,
		Description: "Get the current servo angle in degrees.",
		Handler: func(_ context.Context, _ Args) (Value, error) {
			return Int(int(s.Angle())), nil
		},
	})
}
