package menus

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/tacticmap/internal/bot/keyboards"
	"github.com/vladimiradmaev/tacticmap/internal/domain"
	"github.com/vladimiradmaev/tacticmap/internal/simulator"
	"github.com/vladimiradmaev/tacticmap/internal/utils"
)

// Sender is the subset of *tgbotapi.BotAPI used to render screens
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// SendText sends a plain message with an optional inline keyboard
func SendText(api Sender, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	_, err := api.Send(msg)
	return err
}

func sendMarkdown(api Sender, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboard
	_, err := api.Send(msg)
	return err
}

// SendScreen renders the screen that matches the onboarding step
func SendScreen(api Sender, chatID int64, st domain.SessionState) error {
	switch st.OnboardingStep {
	case domain.StepRegister:
		return SendRegisterStart(api, chatID)
	case domain.StepConsent:
		return SendConsent(api, chatID, domain.Consents{})
	case domain.StepClinical:
		return SendClinical(api, chatID)
	case domain.StepDone:
		name := ""
		if st.User != nil {
			name = st.User.Name
		}
		return SendMainMenu(api, chatID, name)
	default:
		return SendLogin(api, chatID)
	}
}

// SendLogin sends the login screen
func SendLogin(api Sender, chatID int64) error {
	text := `🧤 *TACTICMAP*
Mapeo táctil asistido para autoexploración mamaria.

Inicia sesión con el correo de tu cuenta local o crea una nueva.`
	return sendMarkdown(api, chatID, text, keyboards.LoginMenu())
}

// SendRegisterStart opens the registration form
func SendRegisterStart(api Sender, chatID int64) error {
	keyboard := keyboards.RegisterMenu()
	return SendText(api, chatID, "📝 Crear cuenta\n\nEscribe tu nombre completo:", &keyboard)
}

// SendConsent shows the consent checklist with the current toggles
func SendConsent(api Sender, chatID int64, c domain.Consents) error {
	text := `📄 *Consentimientos*

Antes de continuar debes aceptar:
• Términos de uso
• Tratamiento de datos de salud (RGPD)
• Aviso: TACTICMAP no es un dispositivo de diagnóstico (SaMD)
• Política de privacidad

Pulsa cada punto para marcarlo.`
	return sendMarkdown(api, chatID, text, keyboards.ConsentMenu(c))
}

// SendClinical offers the optional clinical history
func SendClinical(api Sender, chatID int64) error {
	text := `🩺 *Historia clínica*

Estos datos mejoran la interpretación de tus exploraciones.
Puedes completarlos ahora u omitirlos.`
	return sendMarkdown(api, chatID, text, keyboards.ClinicalMenu())
}

// SendMainMenu sends the home screen
func SendMainMenu(api Sender, chatID int64, name string) error {
	greeting := "👋 Hola"
	if name != "" {
		greeting += ", " + name
	}
	text := greeting + `

Elige una acción:
📷 Captura guiada de 3 vistas
🧤 Sensores del guante
🎯 Marcadores de lesión
📊 Reporte de triaje

⚠️ Resultados orientativos. Consulta siempre a un profesional.`
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboards.MainMenuKeyboard()
	_, err := api.Send(msg)
	return err
}

var bleLabels = map[domain.BleStatus]string{
	domain.BleDisconnected: "desconectado",
	domain.BleScanning:     "buscando…",
	domain.BleConnecting:   "conectando…",
	domain.BleConnected:    "conectado",
	domain.BleError:        "error",
	domain.BleUnavailable:  "no disponible",
}

// SensorsText formats the sensor panel
func SensorsText(t domain.TelemetryState) string {
	var b strings.Builder
	b.WriteString("🧤 Sensores\n\n")

	status := bleLabels[t.BleStatus]
	if t.BleDeviceName != "" {
		status += " (" + t.BleDeviceName + ")"
	}
	fmt.Fprintf(&b, "Bluetooth: %s\n", status)
	if t.IsManual {
		b.WriteString("Modo: manual\n")
	} else {
		b.WriteString("Modo: automático\n")
	}

	d := t.Data
	fmt.Fprintf(&b, "\n❤️ Pulso: %.0f bpm\n", d.Pulse)
	fmt.Fprintf(&b, "🖐️ Presión: %.1f kPa\n", d.Pressure)
	fmt.Fprintf(&b, "〰️ Ultrasonido: %.0f m/s\n", d.Ultrasound)
	fmt.Fprintf(&b, "🌡️ Temperatura: %.1f °C\n", d.Temperature)
	fmt.Fprintf(&b, "🧊 Densidad: %.2f g/cm³\n", d.Density)
	return b.String()
}

// SendSensors sends the sensor panel
func SendSensors(api Sender, chatID int64, t domain.TelemetryState) error {
	keyboard := keyboards.SensorsMenu(t.BleStatus, t.IsManual)
	return SendText(api, chatID, SensorsText(t), &keyboard)
}

var severityLabels = map[domain.Severity]string{
	domain.SeverityLow:    "baja",
	domain.SeverityMedium: "media",
	domain.SeverityHigh:   "alta",
}

// LesionText formats one marker
func LesionText(l domain.Lesion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 Lesión %s\n\n", l.ID)
	fmt.Fprintf(&b, "Posición: (%.2f, %.2f, %.2f)\n", l.Position[0], l.Position[1], l.Position[2])
	fmt.Fprintf(&b, "Radio: %.2f\n", l.Radius)
	fmt.Fprintf(&b, "Severidad: %s\n", severityLabels[l.Severity])
	if !l.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Creada: %s\n", l.CreatedAt.Format(utils.DateLayout))
	}
	if l.Notes != "" {
		fmt.Fprintf(&b, "Notas: %s\n", l.Notes)
	}
	return b.String()
}

// SendLesions lists the markers
func SendLesions(api Sender, chatID int64, t domain.TelemetryState) error {
	text := fmt.Sprintf("🎯 Lesiones marcadas: %d", len(t.Lesions))
	if len(t.Lesions) == 0 {
		text += "\n\nNo hay marcadores. Pulsa «Agregar lesión» para crear uno."
	}
	keyboard := keyboards.LesionsMenu(t.Lesions, t.SelectedLesionID)
	return SendText(api, chatID, text, &keyboard)
}

// SendLesion shows the inspector of a single marker
func SendLesion(api Sender, chatID int64, l domain.Lesion) error {
	keyboard := keyboards.LesionMenu(l.ID)
	return SendText(api, chatID, LesionText(l), &keyboard)
}

// CaptureText is the prompt for the next guided shot
func CaptureText(view string, taken, total int) string {
	names := map[string]string{
		simulator.ViewFront: "frontal",
		simulator.ViewLeft:  "lateral izquierda",
		simulator.ViewRight: "lateral derecha",
	}
	return fmt.Sprintf("📷 Captura %d/%d\n\nEnvía una foto de la vista %s.", taken+1, total, names[view])
}

// ReportText formats the triage summary
func ReportText(r simulator.Report, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 Reporte de triaje\n")
	fmt.Fprintf(&b, "%s\n\n", now.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Índice MSI: %.1f\n", r.Score)
	fmt.Fprintf(&b, "Riesgo: %s\n", r.Level)
	fmt.Fprintf(&b, "Hallazgos: %d\n", r.Findings)
	if r.HighTemp {
		b.WriteString("⚠️ Temperatura elevada\n")
	}
	fmt.Fprintf(&b, "\n%s\n\nEste reporte no constituye un diagnóstico.", r.Description)
	return b.String()
}

// SendReport sends the triage summary
func SendReport(api Sender, chatID int64, r simulator.Report, now time.Time) error {
	keyboard := keyboards.BackToMenu()
	return SendText(api, chatID, ReportText(r, now), &keyboard)
}
