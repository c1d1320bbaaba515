package internaldefs

import "github.com/MrEthical07/authcore"

// CounterDef binds a counter to its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram to its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// AuditDropped is exported next to the engine counters.
const (
	AuditDroppedName = "authcore_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

var CounterDefs = []CounterDef{
	{authcore.MetricLoginSuccess, "authcore_login_success_total", "Completed logins."},
	{authcore.MetricLoginFailure, "authcore_login_failure_total", "Logins rejected for bad credentials."},
	{authcore.MetricLoginDisabled, "authcore_login_disabled_total", "Logins refused because the account is disabled."},
	{authcore.MetricLoginUnverified, "authcore_login_unverified_total", "Logins refused because the e-mail is unverified."},
	{authcore.MetricLoginSecondFactorRequired, "authcore_login_second_factor_required_total", "Logins left pending a second factor."},
	{authcore.MetricSecondFactorSuccess, "authcore_second_factor_success_total", "Accepted second-factor codes."},
	{authcore.MetricSecondFactorFailure, "authcore_second_factor_failure_total", "Rejected second-factor codes."},
	{authcore.MetricRateLimitHit, "authcore_rate_limit_hit_total", "Requests denied by a throttle bucket."},
	{authcore.MetricSessionCreated, "authcore_session_created_total", "Sessions created."},
	{authcore.MetricSessionRegenerated, "authcore_session_regenerated_total", "Session identifiers rotated."},
	{authcore.MetricLogout, "authcore_logout_total", "Single-session logouts."},
	{authcore.MetricLogoutOthers, "authcore_logout_others_total", "Logouts of every other session."},
	{authcore.MetricTwoFactorEnabled, "authcore_two_factor_enabled_total", "Two-factor secrets provisioned."},
	{authcore.MetricTwoFactorConfirmed, "authcore_two_factor_confirmed_total", "Two-factor setups confirmed."},
	{authcore.MetricTwoFactorDisabled, "authcore_two_factor_disabled_total", "Two-factor setups removed."},
	{authcore.MetricPasswordResetRequest, "authcore_password_reset_request_total", "Password reset requests."},
	{authcore.MetricPasswordResetPreview, "authcore_password_reset_preview_total", "Reset tokens checked before use."},
	{authcore.MetricPasswordResetPreviewRepeat, "authcore_password_reset_preview_repeat_total", "Reset tokens checked more than once."},
	{authcore.MetricPasswordResetSuccess, "authcore_password_reset_success_total", "Completed password resets."},
	{authcore.MetricPasswordResetFailure, "authcore_password_reset_failure_total", "Rejected password resets."},
	{authcore.MetricPasswordChanged, "authcore_password_changed_total", "Password changes by the owner."},
	{authcore.MetricPasswordRehashed, "authcore_password_rehashed_total", "Hashes upgraded to current parameters at login."},
	{authcore.MetricRegistration, "authcore_registration_total", "Self-service registrations."},
	{authcore.MetricEmailVerificationSent, "authcore_email_verification_sent_total", "Verification links sent."},
	{authcore.MetricEmailVerificationSuccess, "authcore_email_verification_success_total", "Verified e-mail addresses."},
	{authcore.MetricAuthorizationDenied, "authcore_authorization_denied_total", "Requests denied by the operation table."},
	{authcore.MetricAntiForgeryMismatch, "authcore_anti_forgery_mismatch_total", "Mutating requests without a valid anti-forgery token."},
	{authcore.MetricNotificationFailure, "authcore_notification_failure_total", "Notifications the notifier failed to deliver."},
}

var HistogramDefs = []HistogramDef{
	{authcore.MetricRequestLatency, "authcore_request_latency_seconds", "HTTP request latency."},
}

// HistogramBounds are the upper bounds of the engine's latency buckets, in
// seconds, as Prometheus labels.
var HistogramBounds = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix spells HistogramBounds for instrument names.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// Cumulative pads raw to eight buckets and turns per-bucket counts into
// running totals.
func Cumulative(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
