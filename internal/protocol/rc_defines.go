package protocol

// Channel packet constants for the 16-channel CRSF-style layout carried over ESP-NOW

const (
	// Packet shape
	CHANNEL_COUNT       = 16 // Proportional channels per packet
	CHANNEL_FRAME_BYTES = 32 // Minimum payload length (16 x uint16 little-endian)

	// Channel value domain
	CRSF_CHANNEL_VALUE_MIN = 173
	CRSF_CHANNEL_VALUE_MID = 992
	CRSF_CHANNEL_VALUE_MAX = 1811

	// Servo pulse widths as 16-bit duty ticks of a 20ms period (65535 = 20ms)
	SERVOPULSE_0_5MS_TICKS = 1639
	SERVOPULSE_1MS_TICKS   = 3277
	SERVOPULSE_1_5MS_TICKS = 4915
	SERVOPULSE_2MS_TICKS   = 6554
	SERVOPULSE_2_5MS_TICKS = 8192
	SERVO_MIDPOINT_TICKS   = SERVOPULSE_1_5MS_TICKS

	// Motor drive
	FULLSCALE_16BIT       = 65535
	CHANNEL_DEADZONE      = 50  // +/- raw channel units around center
	SERVO_TURN_THRESHOLD  = 100 // +/- servo ticks before a turn signal engages
	BLINK_PERIOD_MS       = 750 // 1.5 Hz indicator cycle
	RECEIVE_TIMEOUT_MS    = 500 // failsafe deadline
	ERROR_PAUSE_MS        = 500 // pause after a transport error
	BIND_BROADCAST_MS     = 500 // 2 Hz identity broadcast while binding
	IDENTITY_LENGTH       = 6   // hardware address length
	LED_BRIGHTNESS_MIN    = 10
	LED_BRIGHTNESS_MAX    = 255
)
