package internaldefs

import (
	goAuthz "github.com/MrEthical07/goAuthz"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goAuthz.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goAuthz.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goAuthz.MetricLoginSuccess, Name: "goauthz_login_success_total", Help: "Logins that issued tokens or a second-factor challenge."},
	{ID: goAuthz.MetricLoginFailure, Name: "goauthz_login_failure_total", Help: "Failed login attempts."},
	{ID: goAuthz.MetricLoginThrottled, Name: "goauthz_login_throttled_total", Help: "Login attempts rejected by the throttle."},
	{ID: goAuthz.MetricTwoFactorRequired, Name: "goauthz_two_factor_required_total", Help: "Logins that required a second factor."},
	{ID: goAuthz.MetricTOTPSuccess, Name: "goauthz_totp_success_total", Help: "Accepted TOTP codes."},
	{ID: goAuthz.MetricTOTPFailure, Name: "goauthz_totp_failure_total", Help: "Rejected second-factor verifications."},
	{ID: goAuthz.MetricTOTPReplay, Name: "goauthz_totp_replay_total", Help: "TOTP codes rejected as replays."},
	{ID: goAuthz.MetricTOTPThrottled, Name: "goauthz_totp_throttled_total", Help: "Second-factor attempts rejected by the throttle."},
	{ID: goAuthz.MetricRefreshSuccess, Name: "goauthz_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goAuthz.MetricRefreshFailure, Name: "goauthz_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: goAuthz.MetricRefreshReuseDetected, Name: "goauthz_refresh_reuse_detected_total", Help: "Refresh tokens presented after revocation."},
	{ID: goAuthz.MetricRefreshThrottled, Name: "goauthz_refresh_throttled_total", Help: "Refresh attempts rejected by the throttle."},
	{ID: goAuthz.MetricRegisterSuccess, Name: "goauthz_register_success_total", Help: "Registered users."},
	{ID: goAuthz.MetricRegisterDuplicate, Name: "goauthz_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: goAuthz.MetricTwoFactorEnabled, Name: "goauthz_two_factor_enabled_total", Help: "Second-factor enrollments."},
	{ID: goAuthz.MetricTwoFactorDisabled, Name: "goauthz_two_factor_disabled_total", Help: "Second-factor removals."},
	{ID: goAuthz.MetricLogout, Name: "goauthz_logout_total", Help: "Single refresh token revocations."},
	{ID: goAuthz.MetricLogoutAll, Name: "goauthz_logout_all_total", Help: "Revocations of every refresh token of a user."},
	{ID: goAuthz.MetricPolicyAllow, Name: "goauthz_policy_allow_total", Help: "Policy evaluations that allowed access."},
	{ID: goAuthz.MetricPolicyDeny, Name: "goauthz_policy_deny_total", Help: "Policy evaluations that denied access."},
}

var HistogramDefs = []HistogramDef{
	{ID: goAuthz.MetricPolicyLatency, Name: "goauthz_policy_latency_seconds", Help: "Policy evaluation latency."},
}

// HistogramBounds are the upper bounds in seconds, matching the engine's
// bucket layout. The final +Inf bucket is implicit.
var HistogramBounds = []float64{
	0.0001,
	0.0005,
	0.001,
	0.005,
	0.01,
	0.05,
	0.1,
}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten histograms into gauges.
var HistogramBoundSuffix = []string{
	"0_0001",
	"0_0005",
	"0_001",
	"0_005",
	"0_01",
	"0_05",
	"0_1",
	"inf",
}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
