// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MetricsCache: snapshots por post em memória, TTL por entrada
//   - MemoryKV / RedisKV: flags duráveis (por dispositivo) e de sessão
//   - HTTPMetricsService: cliente do serviço remoto de métricas
//   - SnapshotLoader: documento estático pré-gerado (arquivo ou URL)
//   - HashSynthesizer: números plausíveis quando nenhuma fonte responde
//   - MemoryEventRecorder / RedisEventRecorder: contadores de desfecho das ações
//   - SessionRegistry: valor por sessão + token bucket (golang.org/x/time/rate)
//   - RequestSlots: semáforo simples para limite de concorrência
package infra
