package handler

import (
	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/quest"
	"github.com/shipcluster/server/internal/session"
)

func writeQuestSummaries(w *packet.Writer, summaries []quest.Summary) {
	w.WriteC(byte(len(summaries)))
	for _, s := range summaries {
		w.WriteD(s.QuestID)
		w.WriteS(s.Name)
		w.WriteS(s.Category)
		w.WriteC(s.Difficulty)
		w.WriteD(s.ClearCount)
	}
}

// HandleQuestAvailable answers with the per-category unlocked-quest
// counts (spec §4.9's quest-counter screen).
func HandleQuestAvailable(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	counts := deps.Quests.AvailableQuests(p.Unlocks)

	w := packet.NewWriterWithOpcode(opQuestAvailable)
	w.WriteC(byte(len(counts)))
	for _, c := range counts {
		w.WriteS(c.Category)
		w.WriteD(uint32(c.Count))
	}
	_ = p.Send(w.Bytes())
}

// HandleQuestList answers with one page of quest summaries for a
// category (byDifficulty == false) or a difficulty tier (true).
func HandleQuestList(sess *session.Session, r *packet.Reader, deps *Deps) {
	p, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	byDifficulty := r.ReadC() != 0
	page := int(r.ReadD())

	var summaries []quest.Summary
	if byDifficulty {
		difficulty := r.ReadC()
		summaries = deps.Quests.ByDifficulty(difficulty, p.Unlocks, page)
	} else {
		category := r.ReadS()
		summaries = deps.Quests.ByCategory(category, p.Unlocks, page)
	}

	w := packet.NewWriterWithOpcode(opQuestList)
	writeQuestSummaries(w, summaries)
	_ = p.Send(w.Bytes())
}

// HandleQuestAccept instantiates the requested quest's map and binds it
// into the accepting character's party (spec §4.9's accept_quest). The
// quest map is built with no script runner, and the transfer callback
// passed to BindQuest does nothing, even for instant-transfer quests; no
// handler moves a player from the lobby into the quest map.
func HandleQuestAccept(sess *session.Session, r *packet.Reader, deps *Deps) {
	_, ok := deps.Players.Get(sess.CharacterID)
	if !ok {
		return
	}
	questID := r.ReadD()

	inst, err := deps.Quests.Accept(questID, nil, deps.Log)
	if err != nil {
		deps.Log.Debug("quest accept failed", zap.Error(err))
		return
	}

	noopTransfer := func(characterID uint32, questMapObjID uint32) error { return nil }
	if err := deps.Parties.BindQuest(sess.CharacterID, inst, inst.Def.InstantTransfer, noopTransfer); err != nil {
		deps.Log.Debug("quest bind failed", zap.Error(err))
	}
}
