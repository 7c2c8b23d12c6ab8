package telegram

import "veritas/pkg/veritas"

const (
	// DriverType is the default driver instance name.
	DriverType = "telegram"
	// DriverPlatform is the neutral platform identifier.
	DriverPlatform = veritas.PlatformTelegram
)
