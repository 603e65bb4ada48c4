// Package domain models the NASA POWER monthly relative-humidity grid and the
// land-only grid cells rendered from it.
//
// # Data Source
//
// Samples originate from the NASA POWER MERRA-2 monthly temporal archive. The
// variable of interest is RH2M (relative humidity at 2 meters, percent). The
// archive exposes a regular latitude/longitude grid (0.5° × 0.625°) with one
// time step per calendar month.
//
// # Conventions
//
// Time:
//
//	Every sample is stamped at the first instant of its month in UTC. Month
//	keys are written as "YYYY-MM" on the command line and as "MM_YYYY" in file
//	and layer names, e.g. "humidity_06_2024_land".
//
// Missing values:
//
//	NaN and the store's _FillValue/missing_value sentinels are treated as
//	missing. Missing samples never reach persisted tables.
//
// Coordinates:
//
//	Latitude and longitude are WGS-84 degrees. Polygons use GeoJSON axis order
//	(lon, lat). Longitudes outside [-180, 180) are wrapped before land lookup.
//
// # Grid Cells
//
// Each land sample becomes an axis-aligned rectangle centered on the sample,
// half the inferred spacing wide and tall in each direction. Spacing is a
// property of one monthly table and is never re-derived per cell. See
// [SpacingOptions.Infer] for the inference strategies.
package domain
