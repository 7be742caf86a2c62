package keyboards

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
)

// Callback data. Parameterised actions use "prefix:arg[:arg]".
const (
	GoLogin    = "go_login"
	GoRegister = "go_register"
	StartLogin = "login"

	ConsentToggle = "consent_toggle" // :terms|gdpr|samd|privacy
	ConsentAccept = "consent_accept"

	ClinicalFill = "clinical_fill"
	ClinicalSkip = "clinical_skip"
	Activity     = "activity" // :level
	YesNo        = "yesno"    // :y|n
	Gender       = "gender"   // :value

	MainMenu = "main_menu"
	Logout   = "logout"
	Help     = "help"

	Sensors       = "sensors"
	BLEConnect    = "ble_connect"
	BLEDisconnect = "ble_disconnect"
	ManualOn      = "manual_on"
	ManualOff     = "manual_off"
	SensorSet     = "sensor_set" // :channel

	Capture = "capture"
	Report  = "report"

	Lesions        = "lesions"
	LesionAdd      = "lesion_add"
	LesionSelect   = "lesion_select"   // :id
	LesionSeverity = "lesion_severity" // :id:1|2|3
	LesionNotes    = "lesion_notes"    // :id
	LesionRemove   = "lesion_remove"   // :id
)

// Consent keys used by ConsentToggle
const (
	ConsentTerms   = "terms"
	ConsentGDPR    = "gdpr"
	ConsentSaMD    = "samd"
	ConsentPrivacy = "privacy"
)

// Sensor channel keys used by SensorSet
const (
	ChannelPulse       = "pulse"
	ChannelPressure    = "pressure"
	ChannelUltrasound  = "ultrasound"
	ChannelTemperature = "temperature"
	ChannelDensity     = "density"
)

// Channels lists the sensor keys in display order
var Channels = []string{ChannelPulse, ChannelPressure, ChannelUltrasound, ChannelTemperature, ChannelDensity}

// Data joins a callback prefix with its arguments
func Data(prefix string, args ...interface{}) string {
	out := prefix
	for _, a := range args {
		out += fmt.Sprintf(":%v", a)
	}
	return out
}

func check(on bool) string {
	if on {
		return "✅"
	}
	return "⬜"
}

func backRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ Menú principal", MainMenu),
	)
}

// LoginMenu is shown on the login step
func LoginMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔑 Iniciar sesión", StartLogin),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Crear cuenta", GoRegister),
		),
	)
}

// RegisterMenu lets the user go back to login while filling the form
func RegisterMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Ya tengo cuenta", GoLogin),
		),
	)
}

// GenderMenu offers the gender options
func GenderMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Femenino", Data(Gender, domain.GenderFemale)),
			tgbotapi.NewInlineKeyboardButtonData("Masculino", Data(Gender, domain.GenderMale)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Otro", Data(Gender, domain.GenderOther)),
			tgbotapi.NewInlineKeyboardButtonData("Prefiero no decir", Data(Gender, domain.GenderPreferNot)),
		),
	)
}

// ConsentMenu shows one toggle per consent; accept appears only when all are checked
func ConsentMenu(c domain.Consents) tgbotapi.InlineKeyboardMarkup {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(check(c.TermsOfUse)+" Términos de uso", Data(ConsentToggle, ConsentTerms)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(check(c.HealthDataGDPR)+" Datos de salud", Data(ConsentToggle, ConsentGDPR)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(check(c.SaMDDisclaimer)+" Aviso SaMD", Data(ConsentToggle, ConsentSaMD)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(check(c.PrivacyPolicy)+" Política de privacidad", Data(ConsentToggle, ConsentPrivacy)),
		),
	)

	if c.AllAccepted() {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("➡️ Aceptar y continuar", ConsentAccept),
			),
		)
	}
	return keyboard
}

// ClinicalMenu offers filling or skipping the clinical profile
func ClinicalMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🩺 Completar historia clínica", ClinicalFill),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Omitir por ahora", ClinicalSkip),
		),
	)
}

// ActivityMenu offers the activity levels
func ActivityMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Sedentaria", Data(Activity, domain.ActivitySedentary)),
			tgbotapi.NewInlineKeyboardButtonData("Ligera", Data(Activity, domain.ActivityLight)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Moderada", Data(Activity, domain.ActivityModerate)),
			tgbotapi.NewInlineKeyboardButtonData("Activa", Data(Activity, domain.ActivityActive)),
		),
	)
}

// YesNoMenu answers a boolean question
func YesNoMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Sí", Data(YesNo, "y")),
			tgbotapi.NewInlineKeyboardButtonData("No", Data(YesNo, "n")),
		),
	)
}

// MainMenuKeyboard is the home screen once onboarding is done
func MainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📷 Captura guiada", Capture),
			tgbotapi.NewInlineKeyboardButtonData("🧤 Sensores", Sensors),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Lesiones", Lesions),
			tgbotapi.NewInlineKeyboardButtonData("📊 Reporte", Report),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚪 Cerrar sesión", Logout),
		),
	)
}

// SensorsMenu depends on the connection status and input mode
func SensorsMenu(status domain.BleStatus, manual bool) tgbotapi.InlineKeyboardMarkup {
	var keyboard tgbotapi.InlineKeyboardMarkup

	switch status {
	case domain.BleConnected:
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔌 Desconectar guante", BLEDisconnect),
		))
	case domain.BleScanning, domain.BleConnecting:
		// no action while a connection is in progress
	case domain.BleUnavailable:
	default:
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📡 Conectar guante", BLEConnect),
		))
	}

	if manual {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Pulso", Data(SensorSet, ChannelPulse)),
				tgbotapi.NewInlineKeyboardButtonData("Presión", Data(SensorSet, ChannelPressure)),
				tgbotapi.NewInlineKeyboardButtonData("Ultrasonido", Data(SensorSet, ChannelUltrasound)),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Temperatura", Data(SensorSet, ChannelTemperature)),
				tgbotapi.NewInlineKeyboardButtonData("Densidad", Data(SensorSet, ChannelDensity)),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📡 Modo automático", ManualOff),
			),
		)
	} else {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Ingreso manual", ManualOn),
		))
	}

	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, backRow())
	return keyboard
}

// LesionsMenu lists markers; the selected one is highlighted
func LesionsMenu(lesions []domain.Lesion, selected string) tgbotapi.InlineKeyboardMarkup {
	var keyboard tgbotapi.InlineKeyboardMarkup

	marks := map[domain.Severity]string{
		domain.SeverityLow:    "🟢",
		domain.SeverityMedium: "🟡",
		domain.SeverityHigh:   "🔴",
	}
	for i, l := range lesions {
		label := fmt.Sprintf("#%d %s r=%.2f", i+1, marks[l.Severity], l.Radius)
		if l.ID == selected {
			label = "👉 " + label
		}
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, Data(LesionSelect, l.ID)),
		))
	}

	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Agregar lesión", LesionAdd),
		),
		backRow(),
	)
	return keyboard
}

// LesionMenu is the inspector of a single marker
func LesionMenu(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🟢 Baja", Data(LesionSeverity, id, int(domain.SeverityLow))),
			tgbotapi.NewInlineKeyboardButtonData("🟡 Media", Data(LesionSeverity, id, int(domain.SeverityMedium))),
			tgbotapi.NewInlineKeyboardButtonData("🔴 Alta", Data(LesionSeverity, id, int(domain.SeverityHigh))),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Notas", Data(LesionNotes, id)),
			tgbotapi.NewInlineKeyboardButtonData("🗑️ Eliminar", Data(LesionRemove, id)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Lesiones", Lesions),
		),
	)
}

// BackToMenu is a single back button
func BackToMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backRow())
}
