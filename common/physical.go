package common

// All units are in metric:
// - Speed is in m/s
// - Distance is in meters
// - Time is in seconds
// - Acceleration is in m/s^2

// SpeedOfSound caps plausible fix speeds.
const SpeedOfSound = 343.0
