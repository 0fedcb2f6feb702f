package config

// DefaultSeeds is the curated Tübingen seed set.
func DefaultSeeds() []string {
	return []string{
		"https://allevents.in/tubingen",
		"https://en.wikipedia.org/wiki/T%C3%BCbingen",
		"https://en.wikivoyage.org/wiki/T%C3%BCbingen",
		"https://historicgermany.travel/historic-germany/tubingen/",
		"https://kunsthalle-tuebingen.de/en/",
		"https://theculturetrip.com/europe/germany/articles/the-best-things-to-see-and-do-in-tubingen-germany",
		"https://tuebingen.ai/",
		"https://tuebingenresearchcampus.com/",
		"https://uni-tuebingen.de/",
		"https://velvetescape.com/things-to-do-in-tubingen/",
		"https://www.booking.com/accommodation/city/de/tubingen.html",
		"https://www.germansights.com/tubingen/",
		"https://www.germany.travel/en/cities-culture/tuebingen.html",
		"https://www.komoot.com/guide/210692/attractions-around-tuebingen",
		"https://www.mygermanyvacation.com/best-things-to-do-and-see-in-tubingen-germany/",
		"https://www.tourism-bw.com/attractions/old-town-of-tuebingen-592d513a97",
		"https://www.tripadvisor.com/Attractions-g198539-Activities-Tubingen_Baden_Wurttemberg.html",
		"https://www.tuebingen.de/en/",
		"https://www.tuebingen.mpg.de/en",
	}
}

// DefaultHeaders mimic a desktop browser. Keys are case-insensitive.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.150 Safari/537.36",
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp," +
			"image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9",
		"Accept-Language":           "en-US,en;q=0.9",
		"Accept-Encoding":           "gzip, deflate, br",
		"Referer":                   "https://www.google.com/",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"DNT":                       "1",
	}
}
