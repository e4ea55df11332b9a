package station

// names maps well-known two-character station codes to observatory names,
// covering the EHT and common EVN/IVS sites. The table is advisory; an
// unknown code is not an error anywhere in the pipeline.
var names = map[string]string{
	"Aa": "ALMA",
	"Ap": "APEX",
	"Az": "SMT Arizona",
	"Bd": "Badary",
	"Ef": "Effelsberg",
	"Gb": "Green Bank",
	"Hh": "Hartebeesthoek",
	"Ho": "Hobart",
	"Jc": "JCMT",
	"Kk": "Kokee Park",
	"Lm": "LMT Volcan Sierra Negra",
	"Mc": "Medicina",
	"Mh": "Metsahovi",
	"Ny": "Ny-Alesund",
	"On": "Onsala",
	"Pv": "IRAM Pico Veleta",
	"Sh": "Seshan",
	"Sm": "SMA",
	"Sv": "Svetloe",
	"Sz": "South Pole Telescope",
	"Tr": "Torun",
	"Wb": "Westerbork",
	"Wz": "Wettzell",
	"Ys": "Yebes",
	"Zc": "Zelenchukskaya",
}

// LookupName returns the observatory name for a station code.
func LookupName(code string) (string, bool) {
	name, ok := names[code]
	return name, ok
}
