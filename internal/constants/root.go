package constants

const (
	AppName            = "stride"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/stride/stride.db"
	Version            = "v0.3.0"

	// DateFormat is the standard day-key format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Daemon constants
	PidfileName = "stride-daemon.pid"

	// Desktop notification delivery via the tray companion app
	TrayAppIdentifier      = "stride-tray"
	NotifierLockfileName   = "stride-tray.lock"
	NotificationDurationMs = uint32(5000)

	// Cron schedules for the daemon (see scheduler package)
	RolloverCronSpec  = "5 0 * * *" // shortly after local midnight
	RefillCronSpec    = "0 * * * *" // hourly, refill is idempotent within a month
	ReconcileCronSpec = "30 */6 * * *"
)
