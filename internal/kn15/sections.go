package kn15

import (
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
)

// Section codes carried in the last digit of the Section Zero date group.
const (
	SectionCodeDaily    = 1
	SectionCodeExtended = 2
)

// Decade identifies the period a Section Eight summary covers.
type Decade int

const (
	DecadeFirst  Decade = 1 // days 1–10
	DecadeSecond Decade = 2 // days 11–20
	DecadeThird  Decade = 3 // day 21 to month end
	DecadeMonth  Decade = 4 // whole month
)

// SectionZero identifies the station and observation time.
type SectionZero struct {
	StationCode string    `json:"station_code"`
	StationName string    `json:"station_name"`
	Date        time.Time `json:"date"`
	SectionCode int       `json:"section_code"`
}

// IcePhenomenon is a coded ice observation. Intensity is nil when the
// telegram repeats the code in the intensity position.
type IcePhenomenon struct {
	Code      int  `json:"code"`
	Intensity *int `json:"intensity"`
}

// DailyPrecipitation is the 0RRRd group.
type DailyPrecipitation struct {
	Precipitation int `json:"precipitation"`
	DurationCode  int `json:"duration_code"`
}

// SectionOne holds the daily readings. Levels are in centimetres.
type SectionOne struct {
	MorningWaterLevel   int                 `json:"morning_water_level"`
	WaterLevelTrend     int                 `json:"water_level_trend"`
	WaterLevel20hPeriod int                 `json:"water_level_20h_period"`
	WaterTemperature    *float64            `json:"water_temperature"`
	AirTemperature      *int                `json:"air_temperature"`
	IcePhenomena        []IcePhenomenon     `json:"ice_phenomena"`
	DailyPrecipitation  *DailyPrecipitation `json:"daily_precipitation"`
}

// SectionTwo corrects the readings of an earlier day.
type SectionTwo struct {
	Date time.Time `json:"date"`
	SectionOne
}

// SectionThree is the mean level of the 20:00–08:00 period.
type SectionThree struct {
	MeanWaterLevel int `json:"mean_water_level"`
}

// SectionSix is one discharge measurement.
type SectionSix struct {
	GroupIndex    int       `json:"group_index"`
	Date          time.Time `json:"date"`
	WaterLevel    int       `json:"water_level"`
	Discharge     float64   `json:"discharge"`
	FreeRiverArea *float64  `json:"free_river_area"`
	MaximumDepth  *int      `json:"maximum_depth"`
}

// SectionEight is a meteorological decade or month summary.
type SectionEight struct {
	Decade        Decade    `json:"decade"`
	Timestamp     time.Time `json:"timestamp"`
	Precipitation int       `json:"precipitation"`
	Temperature   float64   `json:"temperature"`
}

// DecodedTelegram is the full structured form of one telegram.
type DecodedTelegram struct {
	Raw          string          `json:"raw"`
	SectionZero  SectionZero     `json:"section_zero"`
	SectionOne   SectionOne      `json:"section_one"`
	SectionTwo   []SectionTwo    `json:"section_two"`
	SectionThree *SectionThree   `json:"section_three"`
	SectionSix   []SectionSix    `json:"section_six"`
	SectionEight *SectionEight   `json:"section_eight"`
	HydroStation domain.Station  `json:"hydro_station"`
	MeteoStation *domain.Station `json:"meteo_station,omitempty"`
}
