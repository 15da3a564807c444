package sensor

import "math"

// HeatIndex returns the heat index in Celsius for a temperature in Celsius
// and a relative humidity in percent. Below 80 F it uses Steadman's simple
// formula; above, the Rothfusz regression with the NWS low and high humidity
// adjustments.
func HeatIndex(celsius, humidity float64) float64 {
	if math.IsNaN(celsius) || math.IsNaN(humidity) {
		return math.NaN()
	}

	t := celsiusToFahrenheit(celsius)
	h := humidity

	hi := 0.5 * (t + 61.0 + ((t - 68.0) * 1.2) + (h * 0.094))
	if hi > 79 {
		hi = -42.379 +
			2.04901523*t +
			10.14333127*h +
			-0.22475541*t*h +
			-0.00683783*t*t +
			-0.05481717*h*h +
			0.00122874*t*t*h +
			0.00085282*t*h*h +
			-0.00000199*t*t*h*h

		switch {
		case h < 13 && t >= 80 && t <= 112:
			hi -= ((13 - h) * 0.25) * math.Sqrt((17-math.Abs(t-95))*0.05882)
		case h > 85 && t >= 80 && t <= 87:
			hi += ((h - 85) * 0.1) * ((87 - t) * 0.2)
		}
	}

	return fahrenheitToCelsius(hi)
}

func celsiusToFahrenheit(c float64) float64 { return c*1.8 + 32 }

func fahrenheitToCelsius(f float64) float64 { return (f - 32) / 1.8 }
