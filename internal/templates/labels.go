package templates

import "golang.org/x/text/language"

// labels holds the interface strings per language. Keys missing from a
// language fall back to French.
var labels = map[string]map[string]string{
	"fr": {
		"title":          "Carte du Maroc",
		"subtitle":       "Index des Cartes Topographiques (1:50,000)",
		"mode.map":       "Mode Carte",
		"mode.list":      "Mode Liste",
		"mode.map.hint":  "Exploration visuelle par grille",
		"mode.list.hint": "Accès direct aux liens et données",
		"search":         "Rechercher par nom ou numéro...",
		"region.all":     "Toutes les régions",
		"favorites":      "Favoris uniquement",
		"scale":          "Échelle 1/50,000",
		"download":       "Télécharger PDF",
		"open":           "Accéder au lien",
		"locate":         "Voir sur la carte",
		"empty":          "Aucune carte trouvée",
		"empty.hint":     "Essayez un autre nom ou numéro",
		"shown":          "cartes affichées",
		"imported":       "Éléments Importés",
		"archive":        "Archive Topographique du Maroc",
		"reset":          "Réinitialiser la vue",
		"background":     "Image de fond",
		"theme":          "Thème sombre",
		"loading":        "Chargement de l'index…",
		"image.failed":   "Image de référence indisponible",
		"index":          "Index Complet des Cartes",
		"close":          "Fermer",
		"unknown":        "Carte inconnue",
		"downloads":      "Téléchargements",
		"zoom.in":        "Zoom avant",
		"zoom.out":       "Zoom arrière",
	},
	"ar": {
		"title":          "خريطة المغرب",
		"subtitle":       "فهرس الخرائط الطبوغرافية (1:50,000)",
		"mode.map":       "عرض الخريطة",
		"mode.list":      "عرض القائمة",
		"mode.map.hint":  "استكشاف بصري عبر الشبكة",
		"mode.list.hint": "وصول مباشر إلى الروابط والبيانات",
		"search":         "ابحث بالاسم أو الرقم...",
		"region.all":     "كل الجهات",
		"favorites":      "المفضلة فقط",
		"scale":          "مقياس 1/50,000",
		"download":       "تحميل PDF",
		"open":           "فتح الرابط",
		"locate":         "عرض على الخريطة",
		"empty":          "لم يتم العثور على أي خريطة",
		"empty.hint":     "جرب اسما أو رقما آخر",
		"shown":          "خرائط معروضة",
		"imported":       "عناصر مستوردة",
		"archive":        "الأرشيف الطبوغرافي للمغرب",
		"reset":          "إعادة ضبط العرض",
		"background":     "صورة الخلفية",
		"theme":          "الوضع الداكن",
		"loading":        "جارٍ تحميل الفهرس…",
		"image.failed":   "الصورة المرجعية غير متوفرة",
		"index":          "الفهرس الكامل للخرائط",
		"close":          "إغلاق",
		"unknown":        "خريطة غير معروفة",
		"downloads":      "التحميلات",
		"zoom.in":        "تكبير",
		"zoom.out":       "تصغير",
	},
}

// Translate returns the interface string for key in lang.
func Translate(lang, key string) string {
	if s, ok := labels[lang][key]; ok {
		return s
	}
	if s, ok := labels["fr"][key]; ok {
		return s
	}
	return key
}

var matcher = language.NewMatcher([]language.Tag{language.French, language.Arabic})

// MatchLanguage picks fr or ar from an Accept-Language header value.
func MatchLanguage(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return "fr"
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No || idx != 1 {
		return "fr"
	}
	return "ar"
}
