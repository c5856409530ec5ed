package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const openMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

type weatherResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Current   struct {
		Time          string  `json:"time"`
		Temperature2M float64 `json:"temperature_2m"`
		WeatherCode   int     `json:"weather_code"`
		WindSpeed10M  float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		Time             []string  `json:"time"`
		Temperature2MMax []float64 `json:"temperature_2m_max"`
		Temperature2MMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// NewWeatherTool 创建天气查询工具，调用 open-meteo 免费接口。
func NewWeatherTool(httpClient *http.Client) *Tool {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Tool{
		Name:        "getWeather",
		Description: "查询指定经纬度位置的当前天气和未来几天的气温预报。",
		Parameters: ParameterSchema{
			Type: "object",
			Properties: map[string]Property{
				"latitude": {
					Type:        "number",
					Description: "纬度，例如：39.9042",
				},
				"longitude": {
					Type:        "number",
					Description: "经度，例如：116.4074",
				},
			},
			Required: []string{"latitude", "longitude"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			lat, ok := params["latitude"].(float64)
			if !ok {
				return nil, fmt.Errorf("invalid latitude")
			}
			lng, ok := params["longitude"].(float64)
			if !ok {
				return nil, fmt.Errorf("invalid longitude")
			}

			q := url.Values{}
			q.Set("latitude", fmt.Sprintf("%.4f", lat))
			q.Set("longitude", fmt.Sprintf("%.4f", lng))
			q.Set("current", "temperature_2m,weather_code,wind_speed_10m")
			q.Set("daily", "temperature_2m_max,temperature_2m_min")
			q.Set("timezone", "auto")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, openMeteoBaseURL+"?"+q.Encode(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return nil, fmt.Errorf("weather request failed: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("weather request failed with status %d", resp.StatusCode)
			}

			var data weatherResponse
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return nil, fmt.Errorf("decode weather response: %w", err)
			}
			return data, nil
		},
	}
}
