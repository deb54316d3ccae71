package config

// Default is the configuration written by `diorama print-config`.
const Default = `# Pins are BCM line offsets on Chip.

TickMs = 5
HeartbeatMs = 900000
Broker = "tcp://127.0.0.1:1883"
HTTPAddr = ":8080"

[[Input]]
	Name = "Button1"
	Pin = 4
[[Input]]
	Name = "Button2"
	Pin = 14
[[Input]]
	Name = "Button3"
	Pin = 15
	# Confirm with a timer after a pin-change interrupt instead of polling.
	Strategy = "interrupt"
	RequiredChecks = 3
	CheckPeriodMs = 100

[[Input]]
	Name = "IR1"
	Pin = 16
	Kind = "sensor"
[[Input]]
	Name = "IR2"
	Pin = 17
	Kind = "sensor"
[[Input]]
	Name = "IR3"
	Pin = 18
	Kind = "sensor"
[[Input]]
	Name = "IR4"
	Pin = 19
	Kind = "sensor"

[[Output]]
	Name = "LED1"
	Kind = "led"
	Pin = 5
[[Output]]
	Name = "LED2"
	Kind = "led"
	Pin = 12
[[Output]]
	Name = "LED3"
	Kind = "led"
	Pin = 13
[[Output]]
	Name = "SMOKE"
	Kind = "relay"
	Pin = 27
[[Output]]
	Name = "TRAIN1"
	Kind = "train"
	EnablePin = 6
	In1Pin = 7
	In2Pin = 8
[[Output]]
	Name = "TRAIN2"
	Kind = "train"
	EnablePin = 9
	In1Pin = 10
	In2Pin = 11

# Station lights follow Button1.
[[Action]]
	Input = "Button1"
	On = "active"
	Target = "LED1"
	Command = "toggle"

[[Action]]
	Input = "Button2"
	Target = "SMOKE"
	Command = "toggle"

# Button3 sends TRAIN1 forward; it stops when it reaches IR4.
[[Action]]
	Input = "Button3"
	Target = "TRAIN1"
	Command = "speed"
	Speed = 60
	Direction = "forward"
[[Action]]
	Input = "IR4"
	On = "active"
	Target = "TRAIN1"
	Command = "stop"

# Crossing light while a train breaks the IR2 beam.
[[Action]]
	Input = "IR2"
	On = "active"
	Target = "LED2"
	Command = "level"
	Level = 100
[[Action]]
	Input = "IR2"
	On = "inactive"
	Target = "LED2"
	Command = "level"
	Level = 0
`
