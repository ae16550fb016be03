package domain

import (
	"maps"
	"slices"
)

// Family groups variables served by the same upstream endpoint.
type Family string

const (
	FamilyForecast   Family = "forecast"
	FamilyAirQuality Family = "air_quality"
	FamilyElevation  Family = "elevation"
)

// Variable describes a scalar field the field experts can sample.
type Variable struct {
	Name     string
	Label    string
	Unit     string
	Colormap string
	Family   Family
}

var variables = map[string]Variable{
	"precipitation":        {Name: "precipitation", Label: "Precipitation", Unit: "mm", Colormap: "Blues", Family: FamilyForecast},
	"temperature_2m":       {Name: "temperature_2m", Label: "Temperature", Unit: "°C", Colormap: "coolwarm", Family: FamilyForecast},
	"relative_humidity_2m": {Name: "relative_humidity_2m", Label: "Relative humidity", Unit: "%", Colormap: "YlGnBu", Family: FamilyForecast},
	"wind_speed_10m":       {Name: "wind_speed_10m", Label: "Wind speed", Unit: "km/h", Colormap: "viridis", Family: FamilyForecast},
	"cloud_cover":          {Name: "cloud_cover", Label: "Cloud cover", Unit: "%", Colormap: "Greys", Family: FamilyForecast},
	"pm2_5":                {Name: "pm2_5", Label: "PM2.5", Unit: "μg/m³", Colormap: "Reds", Family: FamilyAirQuality},
	"pm10":                 {Name: "pm10", Label: "PM10", Unit: "μg/m³", Colormap: "Oranges", Family: FamilyAirQuality},
	"european_aqi":         {Name: "european_aqi", Label: "European AQI", Unit: "", Colormap: "RdYlGn_r", Family: FamilyAirQuality},
	"elevation":            {Name: "elevation", Label: "Elevation", Unit: "m", Colormap: "terrain", Family: FamilyElevation},
}

// LookupVariable returns the catalog entry for name.
func LookupVariable(name string) (Variable, bool) {
	v, ok := variables[name]
	return v, ok
}

// VariableNames returns the catalog keys in sorted order.
func VariableNames() []string {
	return slices.Sorted(maps.Keys(variables))
}

// Title is the raster or point label: "Label (unit)".
func (v Variable) Title() string {
	if v.Unit == "" {
		return v.Label
	}
	return v.Label + " (" + v.Unit + ")"
}
