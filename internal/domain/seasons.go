package domain

// SeasonAllYear marks perennial crops in the crop-season catalogue.
const SeasonAllYear = "All Season"

// cropSeasons maps classifier labels to the season they are usually sown in.
var cropSeasons = map[string]string{
	"rice": "Kharif", "maize": "Kharif", "jute": "Kharif", "cotton": "Kharif",
	"kidneybeans": "Kharif", "pigeonpeas": "Kharif", "blackgram": "Kharif",
	"mothbeans": "Kharif", "mungbean": "Kharif",

	"wheat": "Rabi", "lentil": "Rabi", "chickpea": "Rabi",
	"grapes": "Rabi", "apple": "Rabi", "orange": "Rabi", "pomegranate": "Rabi",

	"watermelon": "Zaid", "muskmelon": "Zaid", "cucumber": "Zaid",

	"banana": SeasonAllYear, "mango": SeasonAllYear, "papaya": SeasonAllYear,
	"coconut": SeasonAllYear, "coffee": SeasonAllYear,
}

// CropSeason returns the usual sowing season for a crop label, or "" when the
// crop is not catalogued.
func CropSeason(crop string) string {
	return cropSeasons[canonicalCrop(crop)]
}
