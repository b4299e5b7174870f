package crs

import "strings"

// Minimal ESRI WKT strings for the CRSs this service emits. Used for the
// .prj companion of shapefile bundles.
var esriWKT = map[CRS]string{
	WGS84: `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`,
	WebMercator: `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Mercator_Auxiliary_Sphere"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],PARAMETER["Auxiliary_Sphere_Type",0.0],UNIT["Meter",1.0]]`,
	WorldCylindricalEqualArea: `PROJCS["World_Cylindrical_Equal_Area",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Cylindrical_Equal_Area"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],UNIT["Meter",1.0]]`,
}

// ESRIWKT renders c for a .prj file; unknown systems fall back to WGS84.
func (c CRS) ESRIWKT() string {
	if wkt, ok := esriWKT[c]; ok {
		return wkt
	}
	return esriWKT[WGS84]
}

// FromESRIWKT recognizes the projection of a .prj file by its well-known
// name. Shapefiles without a recognizable .prj are treated as WGS84.
func FromESRIWKT(wkt string) CRS {
	switch {
	case strings.Contains(wkt, "Cylindrical_Equal_Area"):
		return WorldCylindricalEqualArea
	case strings.Contains(wkt, "Web_Mercator"), strings.Contains(wkt, "Pseudo-Mercator"):
		return WebMercator
	default:
		return WGS84
	}
}
