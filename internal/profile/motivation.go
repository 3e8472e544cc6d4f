package profile

// MotivationalMessage picks the dashboard message for a completion rate
// given in percent.
func MotivationalMessage(completionRate float64) string {
	switch {
	case completionRate >= 90:
		return "Incrivel! Voce esta arrasando! Continue assim!"
	case completionRate >= 80:
		return "Otimo trabalho! Voce bateu 80% da meta!"
	case completionRate >= 70:
		return "Bom progresso! Mantenha o foco!"
	case completionRate >= 50:
		return "Voce esta no caminho certo! Nao desista!"
	default:
		return "Vamos la! Cada dia e uma nova oportunidade!"
	}
}

// ShouldIncreaseIntensity suggests bumping workout intensity after two
// consistent weeks at 80%+ completion.
func ShouldIncreaseIntensity(completionRate float64, weeksConsistent int) bool {
	return completionRate >= 80 && weeksConsistent >= 2
}
