package app

// ValueConfidence is a measured value with its confidence level.
type ValueConfidence struct {
	Value      float64 `json:"value"`
	Confidence int     `json:"confidence"`
}

// Position is the object's location relative to the sensor.
type Position struct {
	X ValueConfidence `json:"xCoordinate"`
	Y ValueConfidence `json:"yCoordinate"`
	Z ValueConfidence `json:"zCoordinate"`
}

// Speed is a velocity magnitude with its confidence.
type Speed struct {
	Value      float64 `json:"speedValue"`
	Confidence int     `json:"speedConfidence"`
}

// PolarVelocity is velocity as magnitude and heading.
type PolarVelocity struct {
	Magnitude Speed           `json:"velocityMagnitude"`
	Direction ValueConfidence `json:"velocityDirection"`
}

// CartesianVelocity is velocity split per axis.
type CartesianVelocity struct {
	X ValueConfidence `json:"xVelocity"`
	Y ValueConfidence `json:"yVelocity"`
	Z ValueConfidence `json:"zVelocity"`
}

// Velocity carries both velocity representations.
type Velocity struct {
	Polar     PolarVelocity     `json:"polarVelocity"`
	Cartesian CartesianVelocity `json:"cartesianVelocity"`
}

// AccelerationMagnitude is an acceleration magnitude with its confidence.
type AccelerationMagnitude struct {
	Value      float64 `json:"accelerationMagnitudeValue"`
	Confidence int     `json:"accelerationConfidence"`
}

// PolarAcceleration is acceleration as magnitude and heading.
type PolarAcceleration struct {
	Magnitude AccelerationMagnitude `json:"accelerationMagnitude"`
	Direction ValueConfidence       `json:"accelerationDirection"`
}

// CartesianAcceleration is acceleration split per axis.
type CartesianAcceleration struct {
	X ValueConfidence `json:"xAcceleration"`
	Y ValueConfidence `json:"yAcceleration"`
	Z ValueConfidence `json:"zAcceleration"`
}

// Acceleration carries both acceleration representations.
type Acceleration struct {
	Polar     PolarAcceleration     `json:"polarAcceleration"`
	Cartesian CartesianAcceleration `json:"cartesianAcceleration"`
}

// Angles holds the object's orientation.
type Angles struct {
	Z ValueConfidence `json:"zAngle"`
}

// Classification is one candidate object class.
type Classification struct {
	ObjectClass map[string]int `json:"objectClass"`
	Confidence  int            `json:"confidence"`
}

// PerceivedObject is the demo payload: one object reported by a roadside
// perception sensor.
type PerceivedObject struct {
	MeasurementDeltaTime float64          `json:"measurementDeltaTime"`
	Position             Position         `json:"position"`
	ObjectID             int              `json:"objectId"`
	Velocity             Velocity         `json:"velocity"`
	Acceleration         Acceleration     `json:"acceleration"`
	Angles               Angles           `json:"angles"`
	DimensionZ           ValueConfidence  `json:"objectDimensionZ"`
	DimensionY           ValueConfidence  `json:"objectDimensionY"`
	DimensionX           ValueConfidence  `json:"objectDimensionX"`
	Age                  float64          `json:"objectAge"`
	PerceptionQuality    int              `json:"objectPerceptionQuality"`
	Classification       []Classification `json:"classification"`
	Sequence             int              `json:"sequence"`
}

// SampleObject returns the fixed demo record tagged with seq.
func SampleObject(seq int) PerceivedObject {
	unavailable := ValueConfidence{Value: 16383, Confidence: 1}
	accel := ValueConfidence{Value: 161, Confidence: 1}
	dim := ValueConfidence{Value: 256, Confidence: 1}

	return PerceivedObject{
		MeasurementDeltaTime: 996,
		Position: Position{
			X: ValueConfidence{Value: 0.09388985173844638, Confidence: 1},
			Y: ValueConfidence{Value: 0.06514550737208115, Confidence: 1},
			Z: ValueConfidence{Value: 0, Confidence: 1},
		},
		ObjectID: 82,
		Velocity: Velocity{
			Cartesian: CartesianVelocity{
				X: unavailable,
				Y: unavailable,
				Z: ValueConfidence{Value: 16383, Confidence: 126},
			},
		},
		Acceleration: Acceleration{
			Cartesian: CartesianAcceleration{X: accel, Y: accel, Z: accel},
		},
		Angles:            Angles{Z: ValueConfidence{Value: 3598.128858933496, Confidence: 95}},
		DimensionZ:        dim,
		DimensionY:        dim,
		DimensionX:        dim,
		Age:               46.0598892923465,
		PerceptionQuality: 15,
		Classification: []Classification{
			{ObjectClass: map[string]int{"otherSubClass": 0}, Confidence: 101},
		},
		Sequence: seq,
	}
}
