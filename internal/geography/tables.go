package geography

// City maps a municipality name, plus the spellings seen in provider addresses,
// to its department. Compound names precede any shorter name they contain.
type City struct {
	Name       string
	Department string
	Aliases    []string
}

var defaultCities = []City{
	// Atlántico
	{Name: "Puerto Colombia", Department: "Atlántico"},
	{Name: "Juan de Acosta", Department: "Atlántico"},
	{Name: "Barranquilla", Department: "Atlántico", Aliases: []string{"B/quilla", "Baq"}},
	{Name: "Soledad", Department: "Atlántico"},
	{Name: "Malambo", Department: "Atlántico"},
	{Name: "Galapa", Department: "Atlántico"},
	{Name: "Sabanalarga", Department: "Atlántico"},
	{Name: "Baranoa", Department: "Atlántico"},
	{Name: "Tubará", Department: "Atlántico"},
	{Name: "Usiacurí", Department: "Atlántico"},

	// Bolívar
	{Name: "El Carmen de Bolívar", Department: "Bolívar"},
	{Name: "Cartagena", Department: "Bolívar", Aliases: []string{"Cartagena de Indias"}},
	{Name: "Mompox", Department: "Bolívar", Aliases: []string{"Santa Cruz de Mompox", "Mompós"}},
	{Name: "Turbaco", Department: "Bolívar"},
	{Name: "Arjona", Department: "Bolívar"},
	{Name: "Magangué", Department: "Bolívar"},

	// Córdoba
	{Name: "Ciénaga de Oro", Department: "Córdoba"},
	{Name: "San Antero", Department: "Córdoba"},
	{Name: "Montería", Department: "Córdoba"},
	{Name: "Lorica", Department: "Córdoba", Aliases: []string{"Santa Cruz de Lorica"}},
	{Name: "Cereté", Department: "Córdoba"},
	{Name: "Sahagún", Department: "Córdoba"},

	// Magdalena
	{Name: "Santa Marta", Department: "Magdalena"},
	{Name: "Ciénaga", Department: "Magdalena"},
	{Name: "Aracataca", Department: "Magdalena"},
	{Name: "Fundación", Department: "Magdalena"},
	{Name: "El Banco", Department: "Magdalena"},

	// Sucre
	{Name: "Sincelejo", Department: "Sucre"},
	{Name: "Tolú", Department: "Sucre", Aliases: []string{"Santiago de Tolú"}},
	{Name: "Coveñas", Department: "Sucre"},
	{Name: "Corozal", Department: "Sucre"},
	{Name: "San Marcos", Department: "Sucre"},

	// Cesar
	{Name: "Valledupar", Department: "Cesar"},
	{Name: "Aguachica", Department: "Cesar"},
	{Name: "Agustín Codazzi", Department: "Cesar", Aliases: []string{"Codazzi"}},
	{Name: "Bosconia", Department: "Cesar"},

	// La Guajira
	{Name: "Riohacha", Department: "La Guajira"},
	{Name: "Maicao", Department: "La Guajira"},
	{Name: "Uribia", Department: "La Guajira"},
	{Name: "Manaure", Department: "La Guajira"},
	{Name: "Dibulla", Department: "La Guajira", Aliases: []string{"Palomino"}},

	// Archipiélago
	{Name: "San Andrés", Department: "San Andrés y Providencia", Aliases: []string{"San Andres Isla"}},
	{Name: "Providencia", Department: "San Andrés y Providencia"},

	// Main inland cities
	{Name: "Bogotá", Department: "Bogotá D.C.", Aliases: []string{"Bogota D.C.", "Santa Fe de Bogotá"}},
	{Name: "Medellín", Department: "Antioquia"},
	{Name: "Cali", Department: "Valle del Cauca", Aliases: []string{"Santiago de Cali"}},
	{Name: "Bucaramanga", Department: "Santander"},
}

// Sector keywords, compound names first.
var defaultSectors = []string{
	"Centro Histórico",
	"Alto Prado",
	"El Prado",
	"El Rodadero",
	"El Laguito",
	"Pozos Colorados",
	"Bello Horizonte",
	"Castillogrande",
	"Bocagrande",
	"Getsemaní",
	"Riomar",
	"Manga",
	"Crespo",
	"Taganga",
	"Suroccidente",
	"Suroriente",
	"Noroccidente",
	"Nororiente",
	"Norte",
	"Sur",
	"Centro",
	"Oriente",
	"Occidente",
}

// State names as returned by reverse geocoding, mapped to the canonical department.
var defaultDepartments = map[string]string{
	"atlantico":               "Atlántico",
	"bolivar":                 "Bolívar",
	"cordoba":                 "Córdoba",
	"magdalena":               "Magdalena",
	"sucre":                   "Sucre",
	"cesar":                   "Cesar",
	"la guajira":              "La Guajira",
	"guajira":                 "La Guajira",
	"antioquia":               "Antioquia",
	"valle del cauca":         "Valle del Cauca",
	"santander":               "Santander",
	"cundinamarca":            "Cundinamarca",
	"bogota":                  "Bogotá D.C.",
	"bogota d c":              "Bogotá D.C.",
	"bogota distrito capital": "Bogotá D.C.",
	"distrito capital":        "Bogotá D.C.",

	"san andres y providencia":                                "San Andrés y Providencia",
	"san andres providencia y santa catalina":                 "San Andrés y Providencia",
	"archipielago de san andres providencia y santa catalina": "San Andrés y Providencia",
}
