package dispatch

// Replies holds every user-facing message template. The wording is content, not
// logic: deployments can swap the whole set without touching the workflows.
type Replies struct {
	Start               string
	QuestionEmpty       string
	QuestionAck         string
	NoPendingQuestions  string
	SendCVUsage         string
	InvalidEmail        string
	InvalidTier         string
	AlreadyReserved     string
	TemplateUnavailable string
	SendCVSuccess       string // verbs: tier (capitalized), email
	PaymentInstructions string
	VerifyUsage         string
	VerifyNotFound      string // verb: email
	VerifyDone          string // verb: email
	Unrecognized        string
	InternalError       string
}

// DefaultReplies returns the shipped French message set.
func DefaultReplies() Replies {
	return Replies{
		Start: "👋 Bienvenue sur le service CV Builder !\n" +
			"Commandes disponibles :\n" +
			"/sendcv email, type — réserver votre CV (type : junior ou senior)\n" +
			"/question votre question — poser une question à notre équipe\n" +
			"/start — afficher ce message",
		QuestionEmpty: "❌ Votre question est vide. Exemple : /question Comment personnaliser mon CV ?",
		QuestionAck:   "✅ Merci ! Votre question a bien été enregistrée, nous vous répondrons au plus vite.",

		NoPendingQuestions: "Aucune question en attente. 🎉",

		SendCVUsage: "❌ Format invalide. Utilisation : /sendcv email, type\n" +
			"Exemple : /sendcv jean.dupont@mail.com, junior",
		InvalidEmail:        "❌ Format d'email invalide. Vérifiez votre adresse et réessayez.",
		InvalidTier:         "❌ Type de CV invalide. Choisissez « junior » ou « senior ».",
		AlreadyReserved:     "❌ Vous êtes limité à un seul type de CV par adresse email.",
		TemplateUnavailable: "❌ Ce modèle de CV est momentanément indisponible. Réessayez plus tard.",
		SendCVSuccess:       "✅ CV %s réservé pour %s.",
		PaymentInstructions: "Pour finaliser votre commande :\n" +
			"1. Effectuez le paiement selon les instructions reçues par email.\n" +
			"2. Téléversez votre reçu de paiement depuis le formulaire du site.\n" +
			"3. Un administrateur validera votre paiement sous 24h.\n" +
			"Votre CV sera alors disponible au téléchargement. 📄",

		VerifyUsage:    "❌ Utilisation : /verify email",
		VerifyNotFound: "❌ Aucun utilisateur trouvé pour %s.",
		VerifyDone:     "✅ Paiement vérifié pour %s. Le CV est désormais téléchargeable.",

		Unrecognized:  "🤖 Commande non reconnue. Tapez /start pour voir les commandes disponibles.",
		InternalError: "⚠️ Une erreur inattendue s'est produite. Veuillez réessayer plus tard.",
	}
}
