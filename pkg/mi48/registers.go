package mi48

// Control registers, accessed over I2C.
const (
	regFrameMode     = 0xB1
	regFWVersion     = 0xB2
	regFrameRate     = 0xB4
	regPowerDown     = 0xB5
	regStatus        = 0xB6
	regClkSpeed      = 0xB7
	regSenxorType    = 0xBA
	regEmissivity    = 0xCA
	regOffsetCorr    = 0xCB
	regFilterControl = 0xD0
	regFilter1LSB    = 0xD1
	regFilter1MSB    = 0xD2
	regFilter2       = 0xD3
	regSenxorID      = 0xE0
)

// Frame mode bits.
const (
	modeSingleFrame uint8 = 1 << 0
	modeContinuous  uint8 = 1 << 1
	modeNoHeader    uint8 = 1 << 5
)

// Status register bits.
const (
	statusBooting   uint8 = 1 << 0
	statusCapturing uint8 = 1 << 3
	statusDataReady uint8 = 1 << 4
)

// Filter control bits.
const (
	filterF1 uint8 = 1 << 0
	filterF2 uint8 = 1 << 1
	filterF3 uint8 = 1 << 2
)

// cameraTypes maps the SENXOR_TYPE register to module names.
var cameraTypes = map[uint8]string{
	0: "MI0801 non-MP",
	1: "MI0801",
	2: "MI0301",
	3: "MI0802",
	8: "panther",
}

type geometry struct {
	Width  int
	Height int
}

// sensorSizes maps the SENXOR_TYPE register to frame geometry.
var sensorSizes = map[uint8]geometry{
	0: {80, 62},
	1: {80, 62},
	2: {32, 32},
	3: {80, 62},
	8: {160, 120},
}
