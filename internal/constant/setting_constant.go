package constant

// Setting keys
const (
	SettingCurrentModel  = "current_model"
	SettingLastSessionID = "last_session_id"
	SettingTemperature   = "temperature"
	SettingTopP          = "top_p"
	SettingTopK          = "top_k"
	SettingRepeatPenalty = "repeat_penalty"
)

// Defaults returned when a typed setting is absent or malformed
const (
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.9
	DefaultTopK          = 40
	DefaultRepeatPenalty = 1.1
)
