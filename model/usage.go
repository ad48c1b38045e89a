package model

// UserUsage counts premium image uses for one user on one day.
type UserUsage struct {
	Edit     int `json:"edit" db:"edit_used"`
	Generate int `json:"gen" db:"gen_used"`
}

// UsageCounter is the day bucket for premium image usage. Day is the UTC
// calendar date formatted as YYYY-MM-DD.
type UsageCounter struct {
	Day        string               `json:"day"`
	GlobalUsed int                  `json:"global_used"`
	PerUser    map[string]UserUsage `json:"per_user_used"`
}

// NewUsageCounter returns an empty bucket for day.
func NewUsageCounter(day string) UsageCounter {
	return UsageCounter{Day: day, PerUser: make(map[string]UserUsage)}
}

// Clone returns a deep copy.
func (c UsageCounter) Clone() UsageCounter {
	out := UsageCounter{Day: c.Day, GlobalUsed: c.GlobalUsed, PerUser: make(map[string]UserUsage, len(c.PerUser))}
	for k, v := range c.PerUser {
		out.PerUser[k] = v
	}
	return out
}
