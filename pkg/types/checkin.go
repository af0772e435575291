package types

type CheckInMethod string

const (
	CheckInMethodQRScan  CheckInMethod = "qr_scan"
	CheckInMethodSMSCode CheckInMethod = "sms_code"
	CheckInMethodSelf    CheckInMethod = "self-check-in"
	CheckInMethodGuest   CheckInMethod = "guest"
)

type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelSMS   NotificationChannel = "sms"
)
