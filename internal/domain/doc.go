// Package domain models the polygon weather dashboard: data sources and their
// color rules, drawn polygons, the timeline selection, and the drawing
// interaction.
//
// # Data Source
//
// Weather values come from the Open-Meteo archive API
// (https://archive-api.open-meteo.com/v1/archive). A request names a point,
// a start and end date (UTC, date only) and four hourly variables:
//
//	temperature_2m        °C
//	relative_humidity_2m  %
//	wind_speed_10m        km/h
//	precipitation         mm
//
// Each [DataSource] maps one of those fields to an ordered list of
// [ColorRule] thresholds. The API returns JSON null for missing hours; the
// adapter turns those into NaN so [Average] can drop them.
//
// # Averaging
//
// A polygon's value is the arithmetic mean of every non-NaN sample of its
// data source field over the selected time range. When every sample is
// missing the mean is 0, not an error.
//
// # Color Rules
//
// Rules are stored in insertion order and sorted by ascending threshold only
// when a value is evaluated. The first rule whose comparison holds wins:
//
//	Temperature: <10 blue | <25 amber | >=25 red
//
// Equality uses an absolute tolerance of 0.1. A value no rule matches gets
// [DefaultColor]. Rules sharing a threshold keep their insertion order.
//
// # Drawing
//
// A [DrawingSession] collects map clicks. From the third point on, a click
// closer than [ClosureDistance] meters to the first point, or the twelfth
// point, completes the polygon. The closing click is part of the polygon.
//
// # Timeline
//
// The [Timeline] spans 30 days of hourly offsets centered on now: offset 0 is
// 15 days ago, [CenterHour] (360) is now, 719 is just under 15 days ahead.
package domain
