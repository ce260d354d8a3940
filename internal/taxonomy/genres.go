package taxonomy

// DefaultGenres is the allow-listed genre vocabulary, in filename form.
// Underscores become spaces in display names.
var DefaultGenres = []string{
	"60s", "70s", "80s", "90s", "00s",
	"acid_jazz", "adult_contemporary", "alternative", "ambient",
	"bluegrass", "blues", "bossa_nova",
	"chillout", "christian", "classic_rock", "classical", "club", "country",
	"dance", "deep_house", "disco", "drum_and_bass", "dubstep",
	"easy_listening", "electronic",
	"folk", "funk",
	"gospel", "goth",
	"hard_rock", "heavy_metal", "hip_hop", "house",
	"indie", "industrial",
	"jazz", "jpop",
	"kpop",
	"latin", "lounge",
	"metal", "minimal",
	"new_age", "news",
	"oldies", "opera",
	"pop", "progressive", "psytrance", "punk",
	"reggae", "reggaeton", "rnb", "rock",
	"salsa", "schlager", "smooth_jazz", "soul", "soundtracks", "sports", "swing",
	"talk", "techno", "trance",
	"world",
}
