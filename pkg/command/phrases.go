package command

// Phrase is one entry of the voice phrase table.
type Phrase struct {
	Triggers []string
	Action   Action
	op       op
}

func phraseTable() []Phrase {
	return []Phrase{
		{[]string{"walk forward", "move forward"}, Action{ActionWalkForward, "Walking forward..."}, move(1, 0, 0)},
		{[]string{"walk backward", "move backward"}, Action{ActionWalkBackward, "Walking backward..."}, move(-1, 0, 0)},
		{[]string{"move left"}, Action{ActionMoveLeft, "Moving left..."}, move(0, 1, 0)},
		{[]string{"move right"}, Action{ActionMoveRight, "Moving right..."}, move(0, -1, 0)},
		{[]string{"turn left"}, Action{ActionTurnLeft, "Turning left..."}, move(0, 0, 1)},
		{[]string{"turn right"}, Action{ActionTurnRight, "Turning right..."}, move(0, 0, -1)},
		{[]string{"stop"}, Action{ActionStop, "Stopping..."}, opStop},
		{[]string{"sit down"}, Action{ActionSit, "Sitting down..."}, opSit},
		{[]string{"stand up"}, Action{ActionStandUp, "Standing up..."}, opStandUp},
		{[]string{"high stand"}, Action{ActionHighStand, "Switching to high stand..."}, opHighStand},
		{[]string{"low stand"}, Action{ActionLowStand, "Switching to low stand..."}, opLowStand},
		{[]string{"wave hand"}, Action{ActionWaveHand, "Waving hand..."}, opWave},
		{[]string{"shake hand"}, Action{ActionShakeHand, "Shaking hand..."}, opShake},
	}
}

// Phrases returns the phrase table in match order.
func (i *Interpreter) Phrases() []Phrase {
	out := make([]Phrase, len(i.phrases))
	for n, p := range i.phrases {
		out[n] = Phrase{
			Triggers: append([]string(nil), p.Triggers...),
			Action:   p.Action,
		}
	}
	return out
}
