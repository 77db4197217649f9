package game

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"partyquiz/domain"
)

// GameLoop drains the room's channels until the room is torn down. All
// state mutation happens here; timer callbacks queue behind in-flight
// commands instead of preempting them.
func (r *room) GameLoop() {
	defer r.cleanup()

	for !r.closed {
		select {
		case <-r.done:
			return
		case env := <-r.inbox:
			r.dispatch(env)
		case req := <-r.joinReqs:
			r.handleJoinRequest(req)
		case p := <-r.removeMe:
			r.handleDisconnect(p)
		case fire := <-r.timerFired:
			r.handleDeadline(fire.gen)
		}
	}
}

func (r *room) cleanup() {
	r.CloseAndRelease()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.detached {
		return
	}
	if r.hostConn != nil {
		r.hostConn.CloseAndRelease()
	}
	for _, ps := range r.players {
		if ps.conn != nil && ps.conn != r.hostConn {
			ps.conn.CloseAndRelease()
		}
	}
}

// Announce is called by the lobby actor, after the code is assigned and
// before GameLoop starts, so the creating (or carried-over) connections
// learn where they landed.
func (r *room) Announce() {
	if r.hostConn != nil {
		r.sendTo(r.hostConn, MakeEventRoomCreated(r.code))
		r.sendTo(r.hostConn, MakeEventJoined(r.snapshot(r.hostID)))
	}
	for _, ps := range r.players {
		if ps.conn != nil && ps.conn != r.hostConn {
			r.sendTo(ps.conn, MakeEventJoined(r.snapshot(ps.id)))
		}
	}
}

// --- command dispatch ---

func (r *room) dispatch(env commandEnvelope) {
	from := env.from

	if !r.knows(from.ID()) {
		r.sendTo(from, MakeEventError(ErrCodeNotInRoom))
		return
	}

	switch env.cmd.Type {
	case CMD_START_GAME:
		r.handleStartGame(from)
	case CMD_SUBMIT_ANSWER:
		r.handleSubmitAnswer(from, env.cmd.Text)
	case CMD_USE_HINT:
		r.handleUseHint(from)
	case CMD_PAUSE_GAME:
		r.handlePauseGame(from)
	case CMD_RESUME_GAME:
		r.handleResumeGame(from)
	case CMD_EXTEND_TIMER:
		r.handleExtendTimer(from)
	case CMD_RESET_GAME:
		r.handleResetGame(from)
	case CMD_PING:
		r.sendTo(from, MakeEventPong())
	default:
		// Unknown types get an explicit error so the protocol stays
		// debuggable from the client side.
		r.sendTo(from, MakeEventError(ErrCodeUnknownCommand))
	}
}

func (r *room) handleStartGame(from *Player) {
	if from.ID() != r.hostID {
		r.sendTo(from, MakeEventError(ErrCodeNotHost))
		return
	}
	if r.phase != PHASE_LOBBY {
		r.sendTo(from, MakeEventError(ErrCodeWrongPhase))
		return
	}
	if len(r.players) == 0 {
		r.sendTo(from, MakeEventError(ErrCodeNoPlayers))
		return
	}

	slog.Info("game started", "room", r.code, "players", len(r.players))
	r.roundIndex = 0
	r.startRound()
}

func (r *room) handleSubmitAnswer(from *Player, text string) {
	if r.phase != PHASE_PLAYING {
		r.sendTo(from, MakeEventError(ErrCodeWrongPhase))
		return
	}
	if r.paused {
		r.sendTo(from, MakeEventError(ErrCodePaused))
		return
	}
	ps := r.findPlayer(from.ID())
	if ps == nil {
		r.sendTo(from, MakeEventError(ErrCodeNotInRoom))
		return
	}
	if _, dup := r.answers[ps.id]; dup {
		r.sendTo(from, MakeEventError(ErrCodeAlreadyAnswered))
		return
	}

	elapsed := r.now().Sub(r.roundStart).Milliseconds()
	_, hintUsed := r.hintUsers[ps.id]
	r.answers[ps.id] = submittedAnswer{text: text, elapsedMs: elapsed, hintUsed: hintUsed}

	r.sendTo(from, MakeEventAnswerReceived())
	r.broadcast(MakeEventPlayerAnswered(ps.id))
	r.maybeEndPartEarly()
}

func (r *room) handleUseHint(from *Player) {
	if r.phase != PHASE_PLAYING {
		r.sendTo(from, MakeEventError(ErrCodeWrongPhase))
		return
	}
	if r.paused {
		r.sendTo(from, MakeEventError(ErrCodePaused))
		return
	}
	ps := r.findPlayer(from.ID())
	if ps == nil {
		r.sendTo(from, MakeEventError(ErrCodeNotInRoom))
		return
	}
	q := r.currentQuestion()
	if !q.HasHint() {
		r.sendTo(from, MakeEventError(ErrCodeNoHint))
		return
	}
	if _, used := r.hintUsers[ps.id]; used {
		r.sendTo(from, MakeEventError(ErrCodeHintAlreadyUsed))
		return
	}

	r.hintUsers[ps.id] = struct{}{}

	// Only the claimer sees the hint text; everyone else just learns it
	// was claimed.
	r.sendTo(from, MakeEventPlayerHintUsed(ps.id, q.Hint))
	r.broadcastExcept(from, MakeEventPlayerHintUsed(ps.id, ""))
}

func (r *room) handlePauseGame(from *Player) {
	if from.ID() != r.hostID {
		r.sendTo(from, MakeEventError(ErrCodeNotHost))
		return
	}
	if r.phase != PHASE_PLAYING && r.phase != PHASE_ROUND_RESULT {
		r.sendTo(from, MakeEventError(ErrCodeWrongPhase))
		return
	}
	if r.paused {
		r.sendTo(from, MakeEventError(ErrCodeAlreadyPaused))
		return
	}

	r.paused = true
	r.pausedAt = r.now()
	r.pauseRemaining = r.roundDeadline.Sub(r.pausedAt)
	if r.pauseRemaining < 0 {
		r.pauseRemaining = 0
	}
	// Remember what the frozen timer was for. A grace timer scheduled
	// during the pause overwrites timerPurpose, and resume must not
	// reschedule that instead of the round deadline.
	r.pausedPurpose = r.timerPurpose
	r.invalidateTimer()

	r.broadcast(MakeEventGamePaused(r.pauseRemaining.Milliseconds()))
}

func (r *room) handleResumeGame(from *Player) {
	if from.ID() != r.hostID {
		r.sendTo(from, MakeEventError(ErrCodeNotHost))
		return
	}
	if !r.paused {
		r.sendTo(from, MakeEventError(ErrCodeNotPaused))
		return
	}

	now := r.now()
	r.paused = false
	if r.phase == PHASE_PLAYING {
		// Shift the round origin forward so elapsed-time scoring does not
		// charge players for the frozen interval.
		elapsedAtPause := r.pausedAt.Sub(r.roundStart)
		r.roundStart = now.Add(-elapsedAtPause)
	}
	r.roundDeadline = now.Add(r.pauseRemaining)
	r.scheduleTimer(r.pauseRemaining, r.pausedPurpose)
	r.pauseRemaining = 0

	r.broadcast(MakeEventGameResumed(r.roundDeadline.UnixMilli()))
}

func (r *room) handleExtendTimer(from *Player) {
	if from.ID() != r.hostID {
		r.sendTo(from, MakeEventError(ErrCodeNotHost))
		return
	}
	if r.phase != PHASE_PLAYING {
		r.sendTo(from, MakeEventError(ErrCodeWrongPhase))
		return
	}
	if r.paused {
		r.sendTo(from, MakeEventError(ErrCodePaused))
		return
	}

	r.roundDeadline = r.roundDeadline.Add(r.configs.ExtendIncrement)
	r.scheduleTimer(r.roundDeadline.Sub(r.now()), timerPartEnd)

	r.broadcast(MakeEventTimerUpdated(r.roundDeadline.UnixMilli()))
}

// handleResetGame replaces a finished room with a fresh lobby carrying the
// same code, pack and connections. The finished room is torn down, never
// mutated back into shape.
func (r *room) handleResetGame(from *Player) {
	if from.ID() != r.hostID {
		r.sendTo(from, MakeEventError(ErrCodeNotHost))
		return
	}
	if r.phase != PHASE_FINISHED {
		r.sendTo(from, MakeEventError(ErrCodeWrongPhase))
		return
	}

	fresh := r.freshCopy()
	for _, ps := range fresh.players {
		if ps.conn != nil {
			ps.conn.setRoom(fresh)
		}
	}
	if fresh.hostConn != nil {
		fresh.hostConn.setRoom(fresh)
	}

	slog.Info("room reset", "room", r.code)
	r.parentLobby.ReplaceRoom(fresh)

	r.invalidateTimer()
	r.detached = true
	r.closed = true
}

// freshCopy builds the replacement lobby room: identity, connections and
// pack carry over, scores and round position do not.
func (r *room) freshCopy() *room {
	fresh := NewRoom(&Player{}, r.packID, r.questions, r.configs, r.timers, r.results)
	fresh.code = r.code
	fresh.hostID = r.hostID
	fresh.hostConn = r.hostConn
	fresh.now = r.now
	for _, ps := range r.players {
		fresh.players = append(fresh.players, &playerState{
			id:        ps.id,
			name:      ps.name,
			avatarKey: ps.avatarKey,
			conn:      ps.conn,
		})
	}
	return fresh
}

// --- joins, reconnects, disconnects ---

func (r *room) handleJoinRequest(req roomJoinRequest) {
	p := req.player

	// Host reconnect.
	if p.ID() == r.hostID {
		if r.hostConn != nil {
			r.hostConn.CloseAndRelease()
		}
		r.hostConn = p
		if ps := r.findPlayer(p.ID()); ps != nil {
			ps.conn = p
		}
		p.setRoom(r)
		r.cancelGraceTimer()
		req.errChan <- nil
		r.sendTo(p, MakeEventJoined(r.snapshot(p.ID())))
		r.broadcastLobbyUpdate()
		slog.Info("host reconnected", "room", r.code, "player", p.ID())
		return
	}

	// Player reconnect: same stable id, any phase. Score and round position
	// stay untouched.
	if ps := r.findPlayer(p.ID()); ps != nil {
		if ps.conn != nil {
			ps.conn.CloseAndRelease()
		}
		ps.conn = p
		p.setRoom(r)
		r.cancelGraceTimer()
		req.errChan <- nil
		r.sendTo(p, MakeEventJoined(r.snapshot(ps.id)))
		r.broadcastLobbyUpdate()
		slog.Info("player reconnected", "room", r.code, "player", ps.id)
		return
	}

	if r.phase != PHASE_LOBBY {
		req.errChan <- ErrRoomNotAccepting
		return
	}
	if p.Name() == "" {
		req.errChan <- ErrNameRequired
		return
	}

	ps := &playerState{
		id:        p.ID(),
		name:      p.Name(),
		avatarKey: p.AvatarKey(),
		conn:      p,
	}
	r.players = append(r.players, ps)
	p.setRoom(r)
	req.errChan <- nil

	r.sendTo(p, MakeEventJoined(r.snapshot(ps.id)))
	r.broadcastLobbyUpdate()
	slog.Info("player joined", "room", r.code, "player", ps.id, "name", ps.name)
}

func (r *room) handleDisconnect(p *Player) {
	wasHost := r.hostConn == p
	if wasHost {
		r.hostConn = nil
	}

	ps := r.findPlayerByConn(p)
	if ps != nil {
		ps.conn = nil
	}
	if !wasHost && ps == nil {
		// Stale removal for a connection this room no longer tracks.
		return
	}

	if wasHost {
		r.promoteHost(p.ID())
	}
	r.broadcastLobbyUpdate()

	if r.phase == PHASE_PLAYING && !r.paused {
		r.maybeEndPartEarly()
	}

	if r.connectionCount() == 0 {
		if len(r.players) == 0 {
			r.teardown("room-empty")
			return
		}
		if r.phase == PHASE_LOBBY || r.phase == PHASE_FINISHED || r.paused {
			// Everyone is gone but identities remain; give them the grace
			// window to come back before reclaiming the code. A paused
			// room has no running round timer, so without the grace
			// deadline nothing would ever reclaim it.
			r.scheduleTimer(r.configs.HostGracePeriod, timerGrace)
		}
	}
}

// promoteHost transfers host privileges to the earliest-joined remaining
// player. The player list is insertion-ordered by design, so "earliest"
// is simply the first entry that is not the departing host.
func (r *room) promoteHost(departedID string) {
	for _, ps := range r.players {
		if ps.id == departedID {
			continue
		}
		r.hostID = ps.id
		r.hostConn = ps.conn
		r.broadcast(MakeEventHostPromoted(ps.id))
		slog.Info("host promoted", "room", r.code, "player", ps.id)
		return
	}
}

// --- round lifecycle ---

func (r *room) startRound() {
	r.phase = PHASE_PLAYING
	r.partIndex = 0
	r.answers = make(map[string]submittedAnswer)
	r.hintUsers = make(map[string]struct{})
	r.tallies = make(map[string]*roundTally)
	r.startPart()
}

func (r *room) startPart() {
	r.roundStart = r.now()
	r.roundDeadline = r.roundStart.Add(r.configs.RoundDuration)
	r.scheduleTimer(r.configs.RoundDuration, timerPartEnd)

	r.broadcast(MakeEventGameState(RoundStart{
		RoundIndex:  r.roundIndex,
		RoundsTotal: len(r.questions),
		Question:    r.questionView(),
		DeadlineMs:  r.roundDeadline.UnixMilli(),
	}))
}

// endPart scores the closing sub-part and either advances to the next
// sub-part or closes out the round.
func (r *room) endPart() {
	q := r.currentQuestion()
	durationMs := r.configs.RoundDuration.Milliseconds()

	for _, ps := range r.players {
		tally := r.tallies[ps.id]
		if tally == nil {
			tally = &roundTally{}
			r.tallies[ps.id] = tally
		}
		ans, ok := r.answers[ps.id]
		if !ok {
			continue
		}
		tally.answered = true
		correct := q.IsCorrect(r.partIndex, ans.text)
		if correct {
			tally.correct = true
			tally.elapsedMs += ans.elapsedMs
		}
		tally.points += scorePoints(correct, ans.hintUsed, ans.elapsedMs, durationMs, r.configs.Scoring)
	}
	r.answers = make(map[string]submittedAnswer)

	if r.partIndex+1 < q.Parts() {
		r.partIndex++
		r.startPart()
		return
	}
	r.endRound()
}

func (r *room) endRound() {
	results := make([]PlayerResult, 0, len(r.players))
	for i, ps := range r.players {
		tally := r.tallies[ps.id]
		if tally == nil {
			tally = &roundTally{}
		}
		ps.score += tally.points
		results = append(results, PlayerResult{
			PlayerID:   ps.id,
			Name:       ps.name,
			Answered:   tally.answered,
			Correct:    tally.correct,
			ElapsedMs:  tally.elapsedMs,
			Points:     tally.points,
			TotalScore: ps.score,
			joinOrder:  i,
		})
	}
	sortResults(results)

	endedRound := r.roundIndex
	r.phase = PHASE_ROUND_RESULT
	r.roundIndex++
	r.roundDeadline = r.now().Add(r.configs.BetweenRoundDuration)
	r.scheduleTimer(r.configs.BetweenRoundDuration, timerNextRound)

	r.broadcast(MakeEventRoundResult(RoundResultPayload{
		RoundIndex:     endedRound,
		Results:        results,
		Leaderboard:    r.leaderboard(),
		NextDeadlineMs: r.roundDeadline.UnixMilli(),
	}))
}

func (r *room) advanceRound() {
	if r.roundIndex >= len(r.questions) {
		r.finish()
		return
	}
	r.startRound()
}

func (r *room) finish() {
	r.phase = PHASE_FINISHED
	r.invalidateTimer()

	board := r.leaderboard()
	r.broadcast(MakeEventFinalLeaderboard(board))
	slog.Info("game finished", "room", r.code, "rounds", len(r.questions))

	if r.results != nil {
		entries := make([]domain.GameResult, 0, len(board))
		for rank, info := range board {
			entries = append(entries, domain.GameResult{
				PlayerID: info.ID,
				Name:     info.Name,
				Score:    info.Score,
				Rank:     rank + 1,
			})
		}
		code, packID, sink := r.code, r.packID, r.results
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sink.SaveGameResults(ctx, code, packID, entries); err != nil {
				slog.Error("failed to save game results", "room", code, "error", err.Error())
			}
		}()
	}

	if r.connectionCount() == 0 {
		r.teardown("room-empty")
	}
}

// maybeEndPartEarly closes the answering window once every connected
// player has a recorded answer, instead of waiting out the deadline.
func (r *room) maybeEndPartEarly() {
	if r.phase != PHASE_PLAYING || r.paused {
		return
	}
	connected, answered := 0, 0
	for _, ps := range r.players {
		if !ps.connected() {
			continue
		}
		connected++
		if _, ok := r.answers[ps.id]; ok {
			answered++
		}
	}
	if connected == 0 || answered < connected {
		return
	}

	// Invalidate first so a timer racing this path fires as a stale no-op.
	r.invalidateTimer()
	r.endPart()
}

// --- timers ---

func (r *room) scheduleTimer(d time.Duration, purpose timerPurpose) {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timerGen++
	r.timerPurpose = purpose
	gen := r.timerGen
	r.timer = r.timers.AfterFunc(d, func() {
		r.postTimer(gen)
	})
}

// invalidateTimer cancels the pending timer and bumps the generation so a
// callback that already fired is discarded on arrival. Cancellation alone
// is not trusted to win the race.
func (r *room) invalidateTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerGen++
}

func (r *room) cancelGraceTimer() {
	if r.timer != nil && r.timerPurpose == timerGrace {
		r.invalidateTimer()
	}
}

func (r *room) handleDeadline(gen uint64) {
	if gen != r.timerGen {
		return
	}
	r.timer = nil

	switch r.timerPurpose {
	case timerPartEnd:
		if r.phase == PHASE_PLAYING && !r.paused {
			r.endPart()
		}
	case timerNextRound:
		if r.phase == PHASE_ROUND_RESULT && !r.paused {
			r.advanceRound()
		}
	case timerGrace:
		if r.connectionCount() == 0 {
			r.teardown("abandoned")
		}
	}
}

// --- teardown ---

func (r *room) teardown(reason string) {
	r.broadcast(MakeEventRoomClosed(reason))
	r.invalidateTimer()
	r.closed = true
	r.parentLobby.RemoveRoom(r.code)
	slog.Info("room torn down", "room", r.code, "reason", reason)
}

// --- views and helpers ---

func (r *room) knows(id string) bool {
	if id == r.hostID {
		return true
	}
	return r.findPlayer(id) != nil
}

func (r *room) findPlayer(id string) *playerState {
	for _, ps := range r.players {
		if ps.id == id {
			return ps
		}
	}
	return nil
}

func (r *room) findPlayerByConn(p *Player) *playerState {
	for _, ps := range r.players {
		if ps.conn == p {
			return ps
		}
	}
	return nil
}

func (r *room) connectionCount() int {
	count := 0
	if r.hostConn != nil {
		count++
	}
	for _, ps := range r.players {
		if ps.conn != nil && ps.conn != r.hostConn {
			count++
		}
	}
	return count
}

func (r *room) currentQuestion() *domain.Question {
	return &r.questions[r.roundIndex]
}

func (r *room) questionView() QuestionView {
	q := r.currentQuestion()
	return QuestionView{
		Kind:       string(q.Kind),
		Prompt:     q.Prompts[r.partIndex],
		PartIndex:  r.partIndex,
		PartsTotal: q.Parts(),
		Choices:    q.Choices,
		HasHint:    q.HasHint(),
	}
}

func (r *room) playerInfos() []PlayerInfo {
	infos := make([]PlayerInfo, 0, len(r.players))
	for _, ps := range r.players {
		infos = append(infos, PlayerInfo{
			ID:        ps.id,
			Name:      ps.name,
			AvatarKey: ps.avatarKey,
			Score:     ps.score,
			Connected: ps.connected(),
		})
	}
	return infos
}

func (r *room) leaderboard() []PlayerInfo {
	board := r.playerInfos()
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	return board
}

func (r *room) snapshot(forID string) RoomSnapshot {
	snap := RoomSnapshot{
		Code:        r.code,
		Phase:       r.phase.String(),
		HostID:      r.hostID,
		RoundIndex:  r.roundIndex,
		RoundsTotal: len(r.questions),
		Players:     r.playerInfos(),
	}

	switch r.phase {
	case PHASE_PLAYING:
		view := r.questionView()
		snap.Question = &view
		_, snap.YouAnswered = r.answers[forID]
		if _, used := r.hintUsers[forID]; used {
			snap.Hint = r.currentQuestion().Hint
		}
	case PHASE_ROUND_RESULT:
		snap.Leaderboard = r.leaderboard()
	case PHASE_FINISHED:
		snap.Leaderboard = r.leaderboard()
	}
	// The absolute deadline is meaningless while frozen; a paused snapshot
	// carries the remaining budget instead and the deadline is recomputed
	// on resume.
	switch {
	case r.paused:
		snap.PausedRemainingMs = r.pauseRemaining.Milliseconds()
	case r.phase == PHASE_PLAYING || r.phase == PHASE_ROUND_RESULT:
		snap.DeadlineMs = r.roundDeadline.UnixMilli()
	}

	return snap
}

// --- outbound fan-out ---

// broadcast marshals once and fans out to every connection in the room.
// Per-recipient send failures are swallowed; one dead socket must not cost
// the others their update.
func (r *room) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event", "room", r.code, "type", ev.Type, "error", err.Error())
		return
	}
	if r.hostConn != nil {
		r.hostConn.Send(data)
	}
	for _, ps := range r.players {
		if ps.conn != nil && ps.conn != r.hostConn {
			ps.conn.Send(data)
		}
	}
}

func (r *room) broadcastExcept(skip *Player, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event", "room", r.code, "type", ev.Type, "error", err.Error())
		return
	}
	if r.hostConn != nil && r.hostConn != skip {
		r.hostConn.Send(data)
	}
	for _, ps := range r.players {
		if ps.conn != nil && ps.conn != r.hostConn && ps.conn != skip {
			ps.conn.Send(data)
		}
	}
}

func (r *room) broadcastLobbyUpdate() {
	r.broadcast(MakeEventLobbyUpdate(r.playerInfos(), r.hostID))
}

func (r *room) sendTo(p *Player, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event", "room", r.code, "type", ev.Type, "error", err.Error())
		return
	}
	p.Send(data)
}
